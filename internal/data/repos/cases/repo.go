package cases

import (
	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	UserID         string
	OrganizationID string
	Status         cases.CaseStatus
	Limit          int
	Offset         int
}

// SearchQuery is a text search over title, description and evidence content.
type SearchQuery struct {
	Query          string
	UserID         string
	OrganizationID string
	Limit          int
}

// CaseRepository is the storage contract every backend satisfies. The active
// backend is chosen once at startup. "Not found" is a nil/false return on
// every lookup-style method; only infrastructure failures produce errors, and
// those are always a *Error carrying the operation and case id.
//
// All methods block on I/O; cancellation and deadlines come from dbc.Ctx and
// surface through the same error channel.
type CaseRepository interface {
	// Save persists the full aggregate atomically. The in-memory collections
	// are the source of truth for child membership: items missing from them
	// are removed from storage, present items are inserted or updated, and
	// append-only collections (status history, messages) only ever grow.
	// Saving an unchanged aggregate twice yields identical persisted state.
	Save(dbc dbctx.Context, c *cases.Case) (*cases.Case, error)

	// Get returns the fully hydrated aggregate, or nil when absent.
	Get(dbc dbctx.Context, caseID string) (*cases.Case, error)

	// List returns a page ordered by most recent activity plus the total
	// number of matches regardless of the page.
	List(dbc dbctx.Context, f ListFilter) ([]*cases.Case, int64, error)

	// Delete removes the case and every child row. False when nothing existed.
	Delete(dbc dbctx.Context, caseID string) (bool, error)

	// Search ranks backend-specifically; the set of qualifying cases is
	// equivalent across backends.
	Search(dbc dbctx.Context, q SearchQuery) ([]*cases.Case, int64, error)

	// AddMessage appends one conversation turn and bumps last_activity_at.
	// False when the case does not exist.
	AddMessage(dbc dbctx.Context, caseID string, msg cases.Message) (bool, error)

	// GetMessages returns a page of messages in creation order. A missing
	// case yields an empty slice.
	GetMessages(dbc dbctx.Context, caseID string, limit, offset int) ([]cases.Message, error)

	// TouchActivity updates only last_activity_at, never the full aggregate.
	TouchActivity(dbc dbctx.Context, caseID string) (bool, error)

	// Analytics computes counts and derived metrics over child collections.
	Analytics(dbc dbctx.Context, caseID string) (cases.CaseAnalytics, error)

	// CleanupExpired deletes closed cases older than maxAgeDays, at most
	// batchSize per call. Callers re-invoke until it reports zero.
	CleanupExpired(dbc dbctx.Context, maxAgeDays, batchSize int) (int64, error)
}
