package cases

import (
	"sort"
	"strings"
	"time"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
	"github.com/FaultMaven/fm-case-service/internal/platform/logger"
)

// memoryRepo is the dictionary-backed reference backend. It defines the
// behavioral baseline the hybrid backend must match for success/failure
// outcomes. State lives in one process-local map; it is NOT safe for
// concurrent writers and is intended for single-process test/dev use only.
type memoryRepo struct {
	cases map[string]*cases.Case
	log   *logger.Logger
}

func NewMemoryRepository(log *logger.Logger) CaseRepository {
	return &memoryRepo{
		cases: map[string]*cases.Case{},
		log:   log.With("repo", "MemoryCaseRepository"),
	}
}

func (r *memoryRepo) Save(dbc dbctx.Context, c *cases.Case) (*cases.Case, error) {
	c.UpdatedAt = time.Now().UTC()
	stored := c.Clone()
	if prev, ok := r.cases[c.CaseID]; ok {
		stored.StatusHistory = mergeTransitions(prev.StatusHistory, stored.StatusHistory)
		stored.Messages = mergeMessages(prev.Messages, stored.Messages)
	}
	r.cases[c.CaseID] = stored
	return stored.Clone(), nil
}

func (r *memoryRepo) Get(dbc dbctx.Context, caseID string) (*cases.Case, error) {
	c, ok := r.cases[caseID]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r *memoryRepo) List(dbc dbctx.Context, f ListFilter) ([]*cases.Case, int64, error) {
	matched := make([]*cases.Case, 0, len(r.cases))
	for _, c := range r.cases {
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.OrganizationID != "" && c.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastActivityAt.After(matched[j].LastActivityAt)
	})

	total := int64(len(matched))
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	page := paginate(matched, limit, f.Offset)
	out := make([]*cases.Case, 0, len(page))
	for _, c := range page {
		out = append(out, c.Clone())
	}
	return out, total, nil
}

func (r *memoryRepo) Delete(dbc dbctx.Context, caseID string) (bool, error) {
	if _, ok := r.cases[caseID]; !ok {
		return false, nil
	}
	delete(r.cases, caseID)
	return true, nil
}

func (r *memoryRepo) Search(dbc dbctx.Context, q SearchQuery) ([]*cases.Case, int64, error) {
	query := strings.ToLower(strings.TrimSpace(q.Query))
	if query == "" {
		return []*cases.Case{}, 0, nil
	}

	type hit struct {
		c     *cases.Case
		score int
	}
	hits := []hit{}
	for _, c := range r.cases {
		if q.UserID != "" && c.UserID != q.UserID {
			continue
		}
		if q.OrganizationID != "" && c.OrganizationID != q.OrganizationID {
			continue
		}
		score := searchScore(c, query)
		if score == 0 {
			continue
		}
		hits = append(hits, hit{c: c, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].c.LastActivityAt.After(hits[j].c.LastActivityAt)
	})

	total := int64(len(hits))
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > len(hits) {
		limit = len(hits)
	}
	out := make([]*cases.Case, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.c.Clone())
	}
	return out, total, nil
}

// searchScore ranks title matches above description matches above evidence
// content matches.
func searchScore(c *cases.Case, query string) int {
	score := 0
	if strings.Contains(strings.ToLower(c.Title), query) {
		score += 100
	}
	if strings.Contains(strings.ToLower(c.Description), query) {
		score += 10
	}
	for _, e := range c.Evidence {
		if strings.Contains(strings.ToLower(e.Summary), query) ||
			strings.Contains(strings.ToLower(e.PreprocessedContent), query) {
			score++
			break
		}
	}
	return score
}

func (r *memoryRepo) AddMessage(dbc dbctx.Context, caseID string, msg cases.Message) (bool, error) {
	c, ok := r.cases[caseID]
	if !ok {
		return false, nil
	}
	if msg.MessageID == "" {
		msg.MessageID = cases.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.CaseID = caseID
	c.Messages = append(c.Messages, msg)
	c.LastActivityAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepo) GetMessages(dbc dbctx.Context, caseID string, limit, offset int) ([]cases.Message, error) {
	c, ok := r.cases[caseID]
	if !ok {
		return []cases.Message{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	page := paginate(c.Messages, limit, offset)
	out := make([]cases.Message, len(page))
	copy(out, page)
	return out, nil
}

func (r *memoryRepo) TouchActivity(dbc dbctx.Context, caseID string) (bool, error) {
	c, ok := r.cases[caseID]
	if !ok {
		return false, nil
	}
	c.LastActivityAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepo) Analytics(dbc dbctx.Context, caseID string) (cases.CaseAnalytics, error) {
	c, ok := r.cases[caseID]
	if !ok {
		return cases.CaseAnalytics{}, nil
	}

	a := cases.CaseAnalytics{
		CaseID:               c.CaseID,
		Status:               c.Status,
		EvidenceCount:        int64(len(c.Evidence)),
		HypothesisCount:      int64(len(c.Hypotheses)),
		SolutionCount:        int64(len(c.Solutions)),
		MessageCount:         int64(len(c.Messages)),
		FileCount:            int64(len(c.UploadedFiles)),
		HasWorkingConclusion: c.WorkingConclusion != nil,
		HasRootCause:         c.RootCauseConclusion != nil,
		IsDegraded:           c.DegradedMode != nil,
		IsEscalated:          c.EscalationState != nil,
		CreatedAt:            c.CreatedAt,
		LastActivityAt:       c.LastActivityAt,
		ResolvedAt:           c.ResolvedAt,
	}
	for _, h := range c.Hypotheses {
		if h.Status == cases.HypothesisValidated {
			a.ValidatedHypotheses++
		}
	}
	for _, s := range c.Solutions {
		if s.Status == cases.SolutionImplemented || s.Status == cases.SolutionVerified {
			a.ImplementedSolutions++
		}
	}
	for _, f := range c.UploadedFiles {
		a.TotalFileBytes += f.SizeBytes
	}
	if c.ResolvedAt != nil {
		a.ResolutionSeconds = c.ResolvedAt.Sub(c.CreatedAt).Seconds()
	}
	return a, nil
}

func (r *memoryRepo) CleanupExpired(dbc dbctx.Context, maxAgeDays, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	toDelete := []string{}
	for id, c := range r.cases {
		if c.Status == cases.StatusClosed && c.ClosedAt != nil && c.ClosedAt.Before(cutoff) {
			toDelete = append(toDelete, id)
			if len(toDelete) >= batchSize {
				break
			}
		}
	}
	for _, id := range toDelete {
		delete(r.cases, id)
	}
	return int64(len(toDelete)), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func mergeTransitions(prev, next []cases.StatusTransition) []cases.StatusTransition {
	seen := map[string]bool{}
	for _, t := range next {
		seen[transitionKey(t)] = true
	}
	merged := next
	for _, t := range prev {
		if !seen[transitionKey(t)] {
			merged = append(merged, t)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TransitionedAt.Before(merged[j].TransitionedAt)
	})
	return merged
}

func transitionKey(t cases.StatusTransition) string {
	return string(t.ToStatus) + "|" + t.TransitionedAt.UTC().Format(time.RFC3339Nano)
}

func mergeMessages(prev, next []cases.Message) []cases.Message {
	seen := map[string]bool{}
	for _, m := range next {
		seen[m.MessageID] = true
	}
	merged := next
	for _, m := range prev {
		if !seen[m.MessageID] {
			merged = append(merged, m)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].MessageID < merged[j].MessageID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
