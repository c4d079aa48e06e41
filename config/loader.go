package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader resolves schema and template references. A reference naming an
// existing regular file is replaced by the file's content; anything else is
// returned unchanged.
type Loader struct {
	baseDir string
}

// NewLoader creates a Loader resolving relative paths against baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load returns the text behind ref.
func (l *Loader) Load(ref string) (string, error) {
	path, ok := l.path(ref)
	if !ok {
		return ref, nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ref, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	return string(data), nil
}

// LoadSchema is Load for schema references. A reference that looks like a
// schema file name but does not exist is an error rather than inline SDL.
func (l *Loader) LoadSchema(ref string) (string, error) {
	text, err := l.Load(ref)
	if err != nil {
		return "", err
	}
	if text == ref && looksLikeSchemaFile(ref) {
		return "", &FieldError{Field: "schema", Reason: fmt.Sprintf("schema file %q not found", ref)}
	}
	if strings.TrimSpace(text) == "" {
		return "", &FieldError{Field: "schema", Reason: "empty schema"}
	}
	return text, nil
}

func (l *Loader) path(ref string) (string, bool) {
	if ref == "" || strings.ContainsAny(ref, "\n{}") {
		return "", false
	}
	if filepath.IsAbs(ref) || l.baseDir == "" {
		return ref, true
	}
	return filepath.Join(l.baseDir, ref), true
}

func looksLikeSchemaFile(ref string) bool {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".graphql", ".gql", ".graphqls":
		return !strings.ContainsAny(ref, " \t\n")
	}
	return false
}

// Resolve returns a copy of s whose schema, resolver templates and function
// templates hold loaded text instead of references.
func Resolve(s *Spec, l *Loader) (*Spec, error) {
	out := *s
	schema, err := l.LoadSchema(s.Schema)
	if err != nil {
		return nil, err
	}
	out.Schema = schema

	out.Resolvers = make([]Resolver, len(s.Resolvers))
	for i, r := range s.Resolvers {
		if r.Request, err = l.Load(r.Request); err != nil {
			return nil, err
		}
		if r.Response, err = l.Load(r.Response); err != nil {
			return nil, err
		}
		out.Resolvers[i] = r
	}

	out.Functions = make([]Function, len(s.Functions))
	for i, f := range s.Functions {
		if f.Request, err = l.Load(f.Request); err != nil {
			return nil, err
		}
		if f.Response, err = l.Load(f.Response); err != nil {
			return nil, err
		}
		out.Functions[i] = f
	}
	return &out, nil
}
