package cases

import "time"

// CaseAnalytics is the derived summary over a case's child collections.
// A missing case yields the zero value, not an error.
type CaseAnalytics struct {
	CaseID               string     `json:"case_id"`
	Status               CaseStatus `json:"status"`
	EvidenceCount        int64      `json:"evidence_count"`
	HypothesisCount      int64      `json:"hypothesis_count"`
	ValidatedHypotheses  int64      `json:"validated_hypotheses"`
	SolutionCount        int64      `json:"solution_count"`
	ImplementedSolutions int64      `json:"implemented_solutions"`
	MessageCount         int64      `json:"message_count"`
	FileCount            int64      `json:"file_count"`
	TotalFileBytes       int64      `json:"total_file_bytes"`
	HasWorkingConclusion bool       `json:"has_working_conclusion"`
	HasRootCause         bool       `json:"has_root_cause"`
	IsDegraded           bool       `json:"is_degraded"`
	IsEscalated          bool       `json:"is_escalated"`
	CreatedAt            time.Time  `json:"created_at"`
	LastActivityAt       time.Time  `json:"last_activity_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	ResolutionSeconds    float64    `json:"resolution_seconds,omitempty"`
}
