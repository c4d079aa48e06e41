package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func TestListAll_FollowsCursor(t *testing.T) {
	pages := map[string][]int{"": {1, 2}, "p2": {3}, "p3": {4, 5}}
	next := map[string]*string{"": strPtr("p2"), "p2": strPtr("p3"), "p3": nil}
	calls := 0

	got, err := ListAll(context.Background(), func(_ context.Context, token *string) ([]int, *string, error) {
		calls++
		k := ""
		if token != nil {
			k = *token
		}
		return pages[k], next[k], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if fmt.Sprint(got) != "[1 2 3 4 5]" {
		t.Errorf("items = %v", got)
	}
}

func TestListAll_EmptyTokenStops(t *testing.T) {
	got, err := ListAll(context.Background(), func(context.Context, *string) ([]string, *string, error) {
		return []string{"only"}, strPtr(""), nil
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestListAll_NotFoundIsEmpty(t *testing.T) {
	got, err := ListAll(context.Background(), func(context.Context, *string) ([]string, *string, error) {
		return nil, nil, &smithy.GenericAPIError{Code: "NotFoundException", Message: "api gone"}
	})
	if err != nil {
		t.Fatalf("expected not-found to be tolerated, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no items, got %v", got)
	}
}

func TestListAll_PropagatesError(t *testing.T) {
	boom := errors.New("throttled")
	_, err := ListAll(context.Background(), func(context.Context, *string) ([]string, *string, error) {
		return nil, nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("wrapped: %w", ErrNotFound)) {
		t.Error("wrapped ErrNotFound should be not-found")
	}
	if !IsNotFound(&smithy.GenericAPIError{Code: "NoSuchEntity"}) {
		t.Error("NoSuchEntity should be not-found")
	}
	if IsNotFound(&smithy.GenericAPIError{Code: "AccessDeniedException"}) {
		t.Error("AccessDenied should not be not-found")
	}
	if IsNotFound(nil) {
		t.Error("nil should not be not-found")
	}
}

func strPtr(s string) *string { return &s }
