package platform

import (
	"reflect"
	"sort"
)

// Fields is the allow-listed projection of one resource used for equality.
// In a desired projection a nil value means "no opinion" and is never
// compared, so service-filled defaults do not register as drift.
type Fields map[string]any

// Diff compares desired against deployed over the keys of desired.
func Diff(desired, deployed Fields) []DiffEntry {
	keys := make([]string, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []DiffEntry
	for _, k := range keys {
		want := desired[k]
		if isNil(want) {
			continue
		}
		got := deployed[k]
		if !reflect.DeepEqual(want, got) {
			diffs = append(diffs, DiffEntry{Path: k, OldValue: got, NewValue: want})
		}
	}
	return diffs
}

// Classify assigns the action for one desired item given its matched
// deployed item. found is false when nothing matched.
func Classify(desired, deployed Fields, found bool) (Action, []DiffEntry) {
	if !found {
		return ActionCreate, nil
	}
	if diffs := Diff(desired, deployed); len(diffs) > 0 {
		return ActionUpdate, diffs
	}
	return ActionIgnore, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Strategy supplies the kind-specific parts of reconciliation: how desired
// and deployed items are keyed and which fields are compared.
type Strategy[D, R any] interface {
	DesiredKey(D) string
	DeployedKey(R) string
	DesiredFields(D) Fields
	DeployedFields(R) Fields
}

// Step is the classified outcome for one desired item.
type Step[D, R any] struct {
	Action   Action
	Key      string
	Desired  D
	Deployed R
	Diffs    []DiffEntry
}

// PlanItems matches every desired item against deployed and classifies it.
// Steps are returned in desired order. When several deployed items share a
// key the first one listed wins.
func PlanItems[D, R any](s Strategy[D, R], desired []D, deployed []R) []Step[D, R] {
	index := make(map[string]R, len(deployed))
	for _, r := range deployed {
		k := s.DeployedKey(r)
		if _, dup := index[k]; !dup {
			index[k] = r
		}
	}

	steps := make([]Step[D, R], len(desired))
	for i, d := range desired {
		k := s.DesiredKey(d)
		r, found := index[k]
		var got Fields
		if found {
			got = s.DeployedFields(r)
		}
		action, diffs := Classify(s.DesiredFields(d), got, found)
		steps[i] = Step[D, R]{Action: action, Key: k, Desired: d, Deployed: r, Diffs: diffs}
	}
	return steps
}

// KeySet collects the keys of items.
func KeySet[T any](items []T, key func(T) string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[key(it)] = true
	}
	return set
}

// Obsolete returns every candidate whose key is not in keep. Candidates are
// deduplicated by key; the first occurrence wins.
func Obsolete[T any](keep map[string]bool, key func(T) string, candidates ...[]T) []T {
	seen := make(map[string]bool)
	var out []T
	for _, list := range candidates {
		for _, c := range list {
			k := key(c)
			if keep[k] || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, c)
		}
	}
	return out
}
