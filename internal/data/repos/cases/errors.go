package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind coarsely classifies infrastructure failures for callers that
// want to decide on retries; the repository itself never retries.
type ErrorKind string

const (
	KindStorage   ErrorKind = "storage"
	KindConflict  ErrorKind = "conflict"
	KindRetryable ErrorKind = "retryable"
)

// Error is the single error type this layer raises: every infrastructure
// failure (connectivity, constraint violation, malformed stored JSON) is
// wrapped with the failing operation and the case id involved.
type Error struct {
	Op     string
	CaseID string
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	if e.CaseID != "" {
		return fmt.Sprintf("%s: case %s: %v", e.Op, e.CaseID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapErr tags err with operation context. Nil passes through so call sites
// can wrap unconditionally.
func wrapErr(op, caseID string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	return &Error{Op: op, CaseID: caseID, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindRetryable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return KindConflict
		case "40001", "40P01", "55P03": // serialization/deadlock/lock_not_available
			return KindRetryable
		}
	}
	return KindStorage
}
