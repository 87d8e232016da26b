package cases

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapErrNilPassesThrough(t *testing.T) {
	if err := wrapErr("cases.Save", "case_x", nil); err != nil {
		t.Fatalf("nil must pass through, got %v", err)
	}
}

func TestWrapErrDoesNotDoubleWrap(t *testing.T) {
	inner := wrapErr("cases.Get", "case_x", errors.New("boom"))
	outer := wrapErr("cases.List", "", fmt.Errorf("hydrate: %w", inner))

	var repoErr *Error
	if !errors.As(outer, &repoErr) {
		t.Fatal("expected *Error")
	}
	if repoErr.Op != "cases.Get" {
		t.Fatalf("inner wrap must win, got op %q", repoErr.Op)
	}
}

func TestClassifyPgErrors(t *testing.T) {
	tests := []struct {
		code string
		want ErrorKind
	}{
		{"23505", KindConflict},
		{"40001", KindRetryable},
		{"40P01", KindRetryable},
		{"55P03", KindRetryable},
		{"42601", KindStorage},
	}
	for _, tc := range tests {
		err := wrapErr("cases.Save", "case_x", &pgconn.PgError{Code: tc.code})
		var repoErr *Error
		if !errors.As(err, &repoErr) {
			t.Fatalf("code %s: expected *Error", tc.code)
		}
		if repoErr.Kind != tc.want {
			t.Errorf("code %s: got kind %s, want %s", tc.code, repoErr.Kind, tc.want)
		}
	}
}

func TestClassifyContextErrors(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		err := wrapErr("cases.Get", "case_x", fmt.Errorf("query: %w", cause))
		var repoErr *Error
		if !errors.As(err, &repoErr) {
			t.Fatal("expected *Error")
		}
		if repoErr.Kind != KindRetryable {
			t.Errorf("%v: got kind %s, want retryable", cause, repoErr.Kind)
		}
	}
}

func TestErrorMessageIncludesCaseID(t *testing.T) {
	err := wrapErr("cases.Delete", "case_abc", errors.New("down"))
	if got := err.Error(); got != "cases.Delete: case case_abc: down" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, errors.Unwrap(err)) {
		t.Fatal("wrapped cause must unwrap")
	}
}
