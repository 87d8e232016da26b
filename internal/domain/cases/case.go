package cases

import (
	"encoding/json"
	"fmt"
	"time"
)

// CaseStatus is the case lifecycle state. The set is exhaustive; legacy
// vocabularies (active/archived, resolved_with_workaround, solved,
// documenting) are not accepted.
type CaseStatus string

const (
	StatusConsulting    CaseStatus = "consulting"
	StatusInvestigating CaseStatus = "investigating"
	StatusResolved      CaseStatus = "resolved"
	StatusClosed        CaseStatus = "closed"
)

// CaseSeverity replaces the dual priority/severity naming of older schemas.
type CaseSeverity string

const (
	SeverityLow      CaseSeverity = "low"
	SeverityMedium   CaseSeverity = "medium"
	SeverityHigh     CaseSeverity = "high"
	SeverityCritical CaseSeverity = "critical"
)

type CaseCategory string

const (
	CategoryPerformance    CaseCategory = "performance"
	CategoryError          CaseCategory = "error"
	CategoryConfiguration  CaseCategory = "configuration"
	CategoryInfrastructure CaseCategory = "infrastructure"
	CategorySecurity       CaseCategory = "security"
	CategoryOther          CaseCategory = "other"
)

// statusTransitions is the authoritative transition table. closed is terminal.
var statusTransitions = map[CaseStatus][]CaseStatus{
	StatusConsulting:    {StatusInvestigating, StatusClosed},
	StatusInvestigating: {StatusResolved, StatusClosed},
	StatusResolved:      {StatusInvestigating, StatusClosed},
	StatusClosed:        {},
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to CaseStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Case is the aggregate root: the root record, its embedded sub-objects and
// every child collection, treated as one consistency unit. It carries no
// behavior beyond field validation and lifecycle bookkeeping.
type Case struct {
	CaseID         string       `json:"case_id" validate:"required,max=17"`
	UserID         string       `json:"user_id" validate:"required,max=100"`
	OrganizationID string       `json:"organization_id" validate:"required,max=100"`
	Title          string       `json:"title" validate:"required,max=200"`
	Description    string       `json:"description"`
	Status         CaseStatus   `json:"status" validate:"required,oneof=consulting investigating resolved closed"`
	Severity       CaseSeverity `json:"severity" validate:"required,oneof=low medium high critical"`
	Category       CaseCategory `json:"category" validate:"required,oneof=performance error configuration infrastructure security other"`
	Tags           []string     `json:"tags"`

	// StatusHistory is append-only and mirrors the case_status_transitions
	// table; Status always equals the ToStatus of its last entry.
	StatusHistory []StatusTransition `json:"status_history"`

	// Embedded sub-objects. The first three are always present and decode to
	// their defaults when the stored column is NULL; the rest are nullable
	// and absent until the matching lifecycle phase is reached.
	Consulting          *ConsultingData        `json:"consulting"`
	Documentation       *DocumentationData     `json:"documentation"`
	Progress            *InvestigationProgress `json:"progress"`
	ProblemVerification *ProblemVerification   `json:"problem_verification,omitempty"`
	WorkingConclusion   *WorkingConclusion     `json:"working_conclusion,omitempty"`
	RootCauseConclusion *RootCauseConclusion   `json:"root_cause_conclusion,omitempty"`
	PathSelection       *PathSelection         `json:"path_selection,omitempty"`
	DegradedMode        *DegradedMode          `json:"degraded_mode,omitempty"`
	EscalationState     *EscalationState       `json:"escalation_state,omitempty"`

	// Normalized child collections, each owned by exactly this case.
	Evidence      []Evidence            `json:"evidence" validate:"dive"`
	Hypotheses    map[string]Hypothesis `json:"hypotheses" validate:"dive"`
	Solutions     []Solution            `json:"solutions" validate:"dive"`
	UploadedFiles []UploadedFile        `json:"uploaded_files" validate:"dive"`
	Messages      []Message             `json:"messages" validate:"dive"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// NewCase builds a fresh aggregate in the consulting phase with empty child
// collections and the initial status transition recorded.
func NewCase(userID, organizationID, title, description string) *Case {
	now := time.Now().UTC()
	consulting := DefaultConsulting()
	consulting.InitialDescription = description
	return &Case{
		CaseID:         NewCaseID(),
		UserID:         userID,
		OrganizationID: organizationID,
		Title:          title,
		Description:    description,
		Status:         StatusConsulting,
		Severity:       SeverityMedium,
		Category:       CategoryOther,
		Tags:           []string{},
		StatusHistory: []StatusTransition{{
			FromStatus:     "",
			ToStatus:       StatusConsulting,
			Reason:         "case created",
			TransitionedAt: now,
		}},
		Consulting:     consulting,
		Documentation:  DefaultDocumentation(),
		Progress:       DefaultProgress(),
		Evidence:       []Evidence{},
		Hypotheses:     map[string]Hypothesis{},
		Solutions:      []Solution{},
		UploadedFiles:  []UploadedFile{},
		Messages:       []Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
}

// ApplyTransition moves the case to a new status, appends the history entry
// and stamps resolved_at/closed_at. History is never rewritten.
func (c *Case) ApplyTransition(to CaseStatus, reason string, at time.Time) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("invalid status transition %s -> %s", c.Status, to)
	}
	at = at.UTC()
	c.StatusHistory = append(c.StatusHistory, StatusTransition{
		FromStatus:     c.Status,
		ToStatus:       to,
		Reason:         reason,
		TransitionedAt: at,
	})
	c.Status = to
	switch to {
	case StatusResolved:
		c.ResolvedAt = &at
	case StatusClosed:
		c.ClosedAt = &at
	}
	c.UpdatedAt = at
	c.LastActivityAt = at
	return nil
}

// Clone returns a deep copy so stored state never aliases caller state.
func (c *Case) Clone() *Case {
	raw, err := json.Marshal(c)
	if err != nil {
		// The aggregate is plain data; marshal cannot fail for valid values.
		panic(fmt.Sprintf("clone case %s: %v", c.CaseID, err))
	}
	out := &Case{}
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("clone case %s: %v", c.CaseID, err))
	}
	return out
}
