package cases_test

import (
	"testing"
	"time"

	rcases "github.com/FaultMaven/fm-case-service/internal/data/repos/cases"
	"github.com/FaultMaven/fm-case-service/internal/data/repos/testutil"
	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
)

func newMemoryRepo(t *testing.T) rcases.CaseRepository {
	t.Helper()
	return rcases.NewMemoryRepository(testutil.Logger(t))
}

func TestMemoryRoundTrip(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	testutil.AddEvidence(c, 1)
	testutil.AddHypothesis(c, 1, cases.HypothesisProposed)
	testutil.AddSolution(c, 1, cases.SolutionProposed)
	testutil.AddFile(c, 1, 4096)
	c.Messages = append(c.Messages, testutil.NewMessage(1, cases.RoleUser))
	now := time.Now().UTC()
	c.WorkingConclusion = &cases.WorkingConclusion{
		Statement:   "pool too small",
		Confidence:  0.7,
		EvidenceIDs: []string{c.Evidence[0].EvidenceID},
		RecordedAt:  now,
	}

	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("saved case must be found")
	}
	if got.Title != c.Title || got.UserID != c.UserID || got.Status != c.Status {
		t.Fatalf("root fields mismatch: %+v", got)
	}
	if len(got.Evidence) != 1 || len(got.Hypotheses) != 1 || len(got.Solutions) != 1 ||
		len(got.UploadedFiles) != 1 || len(got.Messages) != 1 {
		t.Fatalf("child collections mismatch: %+v", got)
	}
	if got.WorkingConclusion == nil || got.WorkingConclusion.Statement != "pool too small" {
		t.Fatalf("embedded sub-object lost: %+v", got.WorkingConclusion)
	}
	if got.ProblemVerification != nil {
		t.Fatal("absent sub-object must stay absent")
	}
	if len(got.StatusHistory) != 1 {
		t.Fatalf("status history mismatch: %+v", got.StatusHistory)
	}
}

func TestMemorySaveIdempotent(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	testutil.AddEvidence(c, 1)
	testutil.AddHypothesis(c, 1, cases.HypothesisProposed)

	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}
	first, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Save(dbc, first); err != nil {
		t.Fatal(err)
	}
	second, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}

	if len(second.Evidence) != len(first.Evidence) ||
		len(second.Hypotheses) != len(first.Hypotheses) ||
		len(second.StatusHistory) != len(first.StatusHistory) ||
		len(second.Messages) != len(first.Messages) {
		t.Fatalf("re-save changed persisted state: first=%+v second=%+v", first, second)
	}
}

func TestMemoryDifferentialMembership(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	keep := testutil.AddEvidence(c, 1)
	testutil.AddEvidence(c, 2)
	h := testutil.AddHypothesis(c, 1, cases.HypothesisProposed)
	testutil.AddSolution(c, 1, cases.SolutionProposed)

	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}

	// Drop one evidence item, every hypothesis and every solution.
	c.Evidence = c.Evidence[:1]
	delete(c.Hypotheses, h.HypothesisID)
	c.Solutions = []cases.Solution{}

	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].EvidenceID != keep.EvidenceID {
		t.Fatalf("evidence membership not differential: %+v", got.Evidence)
	}
	if len(got.Hypotheses) != 0 {
		t.Fatalf("removed hypothesis survived: %+v", got.Hypotheses)
	}
	if len(got.Solutions) != 0 {
		t.Fatalf("emptied collection must clear storage: %+v", got.Solutions)
	}
}

func TestMemoryAppendOnlyCollections(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	c.Messages = append(c.Messages, testutil.NewMessage(1, cases.RoleUser))
	if err := c.ApplyTransition(cases.StatusInvestigating, "started", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}

	// A stale writer saves a copy with truncated history and messages; the
	// recorded entries must survive.
	stale := c.Clone()
	stale.StatusHistory = stale.StatusHistory[:1]
	stale.Messages = []cases.Message{}
	if _, err := repo.Save(dbc, stale); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.StatusHistory) != 2 {
		t.Fatalf("status history shrank: %+v", got.StatusHistory)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages shrank: %+v", got.Messages)
	}
}

func TestMemoryCloneIsolation(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	testutil.AddEvidence(c, 1)
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	got.Title = "mutated"
	got.Evidence[0].Summary = "mutated"

	again, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Title == "mutated" || again.Evidence[0].Summary == "mutated" {
		t.Fatal("returned aggregate aliases stored state")
	}
}

func TestMemoryGetMissing(t *testing.T) {
	repo := newMemoryRepo(t)
	got, err := repo.Get(dbctx.Context{}, "case_missing")
	if err != nil {
		t.Fatalf("missing case is not an error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestMemoryListFiltersAndPaginates(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		c := testutil.NewCase(1) // same user/org
		c.Title = "case number"
		c.LastActivityAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := repo.Save(dbc, c); err != nil {
			t.Fatal(err)
		}
	}
	other := testutil.NewCase(2)
	if _, err := repo.Save(dbc, other); err != nil {
		t.Fatal(err)
	}

	page, total, err := repo.List(dbc, rcases.ListFilter{UserID: "user_1", Limit: 2, Offset: 0})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("total must count all matches, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if page[0].LastActivityAt.Before(page[1].LastActivityAt) {
		t.Fatal("page must be ordered by recency")
	}

	// Offset past the end yields an empty page with the full total.
	empty, total, err := repo.List(dbc, rcases.ListFilter{UserID: "user_1", Limit: 2, Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(empty) != 0 {
		t.Fatalf("expected empty page with total 5, got %d/%d", len(empty), total)
	}

	// Partial last page: offset 4 of 5 leaves one.
	last, _, err := repo.List(dbc, rcases.ListFilter{UserID: "user_1", Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 {
		t.Fatalf("expected 1 item on last page, got %d", len(last))
	}

	// Status filter.
	_, total, err = repo.List(dbc, rcases.ListFilter{UserID: "user_1", Status: cases.StatusClosed})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("no closed cases expected, got %d", total)
	}
}

func TestMemoryListDefaultLimit(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	for i := 0; i < 55; i++ {
		c := testutil.NewCase(1)
		if _, err := repo.Save(dbc, c); err != nil {
			t.Fatal(err)
		}
	}

	// Limit 0 means the default page of 50, the same rule the database
	// backend applies, never the whole result set.
	page, total, err := repo.List(dbc, rcases.ListFilter{UserID: "user_1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 55 {
		t.Fatalf("expected total 55, got %d", total)
	}
	if len(page) != 50 {
		t.Fatalf("expected default page of 50, got %d", len(page))
	}
}

func TestMemorySearchRanking(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	titleHit := testutil.NewCase(1)
	titleHit.Title = "kafka consumer lag"
	titleHit.Description = "nothing relevant"

	descHit := testutil.NewCase(1)
	descHit.Title = "unrelated"
	descHit.Description = "kafka rebalances too often"

	evHit := testutil.NewCase(1)
	evHit.Title = "unrelated"
	evHit.Description = "unrelated"
	ev := testutil.AddEvidence(evHit, 1)
	ev.Summary = "kafka broker logs"
	evHit.Evidence[0] = ev

	miss := testutil.NewCase(1)
	miss.Title = "postgres vacuum"

	for _, c := range []*cases.Case{titleHit, descHit, evHit, miss} {
		if _, err := repo.Save(dbc, c); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := repo.Search(dbc, rcases.SearchQuery{Query: "kafka", UserID: "user_1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("expected 3 hits, got %d", total)
	}
	if got[0].CaseID != titleHit.CaseID {
		t.Fatalf("title match must rank first, got %s", got[0].CaseID)
	}
	if got[1].CaseID != descHit.CaseID {
		t.Fatalf("description match must rank second, got %s", got[1].CaseID)
	}

	// Empty query returns nothing rather than everything.
	none, total, err := repo.Search(dbc, rcases.SearchQuery{Query: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(none) != 0 {
		t.Fatal("blank query must match nothing")
	}

	// Scoped to another user.
	_, total, err = repo.Search(dbc, rcases.SearchQuery{Query: "kafka", UserID: "user_2"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("user filter leaked, got %d", total)
	}
}

func TestMemoryDelete(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}
	deleted, err := repo.Delete(dbc, c.CaseID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v/%v", deleted, err)
	}
	deleted, err = repo.Delete(dbc, c.CaseID)
	if err != nil || deleted {
		t.Fatalf("second delete must report false, got %v/%v", deleted, err)
	}
	got, err := repo.Get(dbc, c.CaseID)
	if err != nil || got != nil {
		t.Fatalf("deleted case must be gone, got %+v/%v", got, err)
	}
}

func TestMemoryMessages(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}
	before, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		role := cases.RoleUser
		if i%2 == 1 {
			role = cases.RoleAssistant
		}
		added, err := repo.AddMessage(dbc, c.CaseID, testutil.NewMessage(i, role))
		if err != nil || !added {
			t.Fatalf("add message %d: %v/%v", i, added, err)
		}
	}

	after, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.LastActivityAt.After(before.LastActivityAt) {
		t.Fatal("AddMessage must bump last_activity_at")
	}

	msgs, err := repo.GetMessages(dbc, c.CaseID, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].CreatedAt.After(msgs[1].CreatedAt) {
		t.Fatal("messages must come back in creation order")
	}

	rest, err := repo.GetMessages(dbc, c.CaseID, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining message, got %d", len(rest))
	}

	added, err := repo.AddMessage(dbc, "case_missing", testutil.NewMessage(9, cases.RoleUser))
	if err != nil || added {
		t.Fatalf("missing case must report false, got %v/%v", added, err)
	}
	empty, err := repo.GetMessages(dbc, "case_missing", 10, 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing case yields empty slice, got %+v/%v", empty, err)
	}
}

func TestMemoryTouchActivity(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	c.LastActivityAt = time.Now().UTC().Add(-time.Hour)
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}

	touched, err := repo.TouchActivity(dbc, c.CaseID)
	if err != nil || !touched {
		t.Fatalf("touch failed: %v/%v", touched, err)
	}
	got, err := repo.Get(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastActivityAt.After(c.LastActivityAt) {
		t.Fatal("touch must advance last_activity_at")
	}

	touched, err = repo.TouchActivity(dbc, "case_missing")
	if err != nil || touched {
		t.Fatalf("missing case must report false, got %v/%v", touched, err)
	}
}

func TestMemoryAnalytics(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}

	c := testutil.NewCase(1)
	testutil.AddEvidence(c, 1)
	testutil.AddEvidence(c, 2)
	testutil.AddHypothesis(c, 1, cases.HypothesisValidated)
	testutil.AddHypothesis(c, 2, cases.HypothesisProposed)
	testutil.AddSolution(c, 1, cases.SolutionImplemented)
	testutil.AddSolution(c, 2, cases.SolutionVerified)
	testutil.AddSolution(c, 3, cases.SolutionProposed)
	testutil.AddFile(c, 1, 1000)
	testutil.AddFile(c, 2, 2000)
	c.Messages = append(c.Messages, testutil.NewMessage(1, cases.RoleUser))
	now := time.Now().UTC()
	c.RootCauseConclusion = &cases.RootCauseConclusion{RootCause: "x", Confidence: 1, ConcludedAt: now}
	if err := c.ApplyTransition(cases.StatusInvestigating, "", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyTransition(cases.StatusResolved, "", now); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Save(dbc, c); err != nil {
		t.Fatal(err)
	}

	a, err := repo.Analytics(dbc, c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if a.EvidenceCount != 2 || a.HypothesisCount != 2 || a.SolutionCount != 3 ||
		a.MessageCount != 1 || a.FileCount != 2 {
		t.Fatalf("counts wrong: %+v", a)
	}
	if a.ValidatedHypotheses != 1 {
		t.Fatalf("validated hypotheses wrong: %d", a.ValidatedHypotheses)
	}
	if a.ImplementedSolutions != 2 {
		t.Fatalf("implemented+verified solutions wrong: %d", a.ImplementedSolutions)
	}
	if a.TotalFileBytes != 3000 {
		t.Fatalf("file bytes wrong: %d", a.TotalFileBytes)
	}
	if !a.HasRootCause || a.HasWorkingConclusion || a.IsDegraded || a.IsEscalated {
		t.Fatalf("embed flags wrong: %+v", a)
	}
	if a.ResolutionSeconds <= 0 {
		t.Fatalf("resolution time must be positive: %f", a.ResolutionSeconds)
	}

	zero, err := repo.Analytics(dbc, "case_missing")
	if err != nil {
		t.Fatal(err)
	}
	if zero.CaseID != "" || zero.EvidenceCount != 0 {
		t.Fatalf("missing case yields zero analytics, got %+v", zero)
	}
}

func TestMemoryCleanupExpired(t *testing.T) {
	repo := newMemoryRepo(t)
	dbc := dbctx.Context{}
	now := time.Now().UTC()

	oldClosed := func(daysAgo int) *cases.Case {
		c := testutil.NewCase(1)
		closedAt := now.AddDate(0, 0, -daysAgo)
		c.Status = cases.StatusClosed
		c.ClosedAt = &closedAt
		return c
	}

	expired1 := oldClosed(100)
	expired2 := oldClosed(90)
	recentClosed := oldClosed(5)
	open := testutil.NewCase(1)

	reopened := oldClosed(90)
	reopened.Status = cases.StatusInvestigating

	for _, c := range []*cases.Case{expired1, expired2, recentClosed, open, reopened} {
		if _, err := repo.Save(dbc, c); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.CleanupExpired(dbc, 30, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("batch size must cap deletions, got %d", n)
	}
	n, err = repo.CleanupExpired(dbc, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining expired case, got %d", n)
	}

	if got, _ := repo.Get(dbc, recentClosed.CaseID); got == nil {
		t.Fatal("recently closed case must survive")
	}
	if got, _ := repo.Get(dbc, open.CaseID); got == nil {
		t.Fatal("open case must survive")
	}
	if got, _ := repo.Get(dbc, reopened.CaseID); got == nil {
		t.Fatal("reopened case must survive despite stale closed_at")
	}
	n, err = repo.CleanupExpired(dbc, 30, 10)
	if err != nil || n != 0 {
		t.Fatalf("expected no further deletions, got %d/%v", n, err)
	}
}
