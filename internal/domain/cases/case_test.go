package cases

import (
	"strings"
	"testing"
	"time"
)

func TestNewCaseDefaults(t *testing.T) {
	c := NewCase("user_1", "org_1", "db timeouts", "queries stall under load")

	if !strings.HasPrefix(c.CaseID, "case_") || len(c.CaseID) > 17 {
		t.Fatalf("unexpected case id %q", c.CaseID)
	}
	if c.Status != StatusConsulting {
		t.Fatalf("expected consulting status, got %s", c.Status)
	}
	if c.Severity != SeverityMedium || c.Category != CategoryOther {
		t.Fatalf("unexpected defaults: severity=%s category=%s", c.Severity, c.Category)
	}
	if len(c.StatusHistory) != 1 || c.StatusHistory[0].ToStatus != StatusConsulting {
		t.Fatalf("expected initial transition recorded, got %+v", c.StatusHistory)
	}
	if c.StatusHistory[0].FromStatus != "" {
		t.Fatalf("initial transition should have empty from_status, got %q", c.StatusHistory[0].FromStatus)
	}
	if c.Consulting == nil || c.Documentation == nil || c.Progress == nil {
		t.Fatal("required embedded sub-objects must be present")
	}
	if c.Consulting.InitialDescription != "queries stall under load" {
		t.Fatalf("consulting seeded with %q", c.Consulting.InitialDescription)
	}
	if c.Progress.CurrentPhase != "intake" {
		t.Fatalf("expected intake phase, got %q", c.Progress.CurrentPhase)
	}
	if c.ProblemVerification != nil || c.WorkingConclusion != nil || c.RootCauseConclusion != nil ||
		c.PathSelection != nil || c.DegradedMode != nil || c.EscalationState != nil {
		t.Fatal("nullable sub-objects must start absent")
	}
	if c.Evidence == nil || c.Hypotheses == nil || c.Solutions == nil ||
		c.UploadedFiles == nil || c.Messages == nil || c.Tags == nil {
		t.Fatal("collections must start empty, not nil")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("fresh case must validate: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to CaseStatus }{
		{StatusConsulting, StatusInvestigating},
		{StatusConsulting, StatusClosed},
		{StatusInvestigating, StatusResolved},
		{StatusInvestigating, StatusClosed},
		{StatusResolved, StatusInvestigating},
		{StatusResolved, StatusClosed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to CaseStatus }{
		{StatusConsulting, StatusResolved},
		{StatusResolved, StatusConsulting},
		{StatusClosed, StatusConsulting},
		{StatusClosed, StatusInvestigating},
		{StatusClosed, StatusResolved},
		{StatusClosed, StatusClosed},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestApplyTransitionStampsTimestamps(t *testing.T) {
	c := NewCase("user_1", "org_1", "api errors", "")
	at := time.Now().UTC()

	if err := c.ApplyTransition(StatusInvestigating, "evidence gathered", at); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := c.ApplyTransition(StatusResolved, "root cause found", at.Add(time.Hour)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if c.ResolvedAt == nil || !c.ResolvedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("resolved_at not stamped: %v", c.ResolvedAt)
	}
	if err := c.ApplyTransition(StatusClosed, "done", at.Add(2*time.Hour)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if c.ClosedAt == nil || !c.ClosedAt.Equal(at.Add(2*time.Hour)) {
		t.Fatalf("closed_at not stamped: %v", c.ClosedAt)
	}
	if len(c.StatusHistory) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(c.StatusHistory))
	}
	last := c.StatusHistory[len(c.StatusHistory)-1]
	if last.FromStatus != StatusResolved || last.ToStatus != StatusClosed {
		t.Fatalf("unexpected last transition %+v", last)
	}

	if err := c.ApplyTransition(StatusInvestigating, "reopen", at.Add(3*time.Hour)); err == nil {
		t.Fatal("closed must be terminal")
	}
}

func TestApplyTransitionReopen(t *testing.T) {
	c := NewCase("user_1", "org_1", "flaky test", "")
	now := time.Now().UTC()
	if err := c.ApplyTransition(StatusInvestigating, "", now); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyTransition(StatusResolved, "", now); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyTransition(StatusInvestigating, "regression", now); err != nil {
		t.Fatalf("resolved -> investigating must be allowed: %v", err)
	}
	if c.Status != StatusInvestigating {
		t.Fatalf("status not updated, got %s", c.Status)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := NewCase("user_1", "org_1", "disk full", "")
	c.Tags = []string{"storage"}
	c.Evidence = append(c.Evidence, Evidence{
		EvidenceID:      NewEvidenceID(),
		Category:        "logs",
		Summary:         "df output",
		UploadTimestamp: time.Now().UTC(),
	})
	h := Hypothesis{
		HypothesisID:          NewHypothesisID(),
		Description:           "log rotation disabled",
		Status:                HypothesisProposed,
		SupportingEvidenceIDs: []string{},
		ProposedAt:            time.Now().UTC(),
		UpdatedAt:             time.Now().UTC(),
	}
	c.Hypotheses[h.HypothesisID] = h

	clone := c.Clone()
	clone.Title = "changed"
	clone.Tags[0] = "changed"
	clone.Evidence[0].Summary = "changed"
	delete(clone.Hypotheses, h.HypothesisID)

	if c.Title != "disk full" || c.Tags[0] != "storage" || c.Evidence[0].Summary != "df output" {
		t.Fatal("clone mutation leaked into original")
	}
	if _, ok := c.Hypotheses[h.HypothesisID]; !ok {
		t.Fatal("clone map mutation leaked into original")
	}
}
