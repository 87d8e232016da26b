package cases

import (
	"bytes"
	"encoding/json"
	"time"
)

// Embedded sub-objects are cohesive, rarely-filtered state stored as one
// JSONB column each on the cases table. Field names round-trip through JSON
// exactly as declared here.

type ConsultingData struct {
	InitialDescription string   `json:"initial_description"`
	Context            string   `json:"context"`
	UserGoals          []string `json:"user_goals"`
}

func DefaultConsulting() *ConsultingData {
	return &ConsultingData{UserGoals: []string{}}
}

type DocumentationData struct {
	Summary        string   `json:"summary"`
	Timeline       []string `json:"timeline"`
	LessonsLearned []string `json:"lessons_learned"`
}

func DefaultDocumentation() *DocumentationData {
	return &DocumentationData{Timeline: []string{}, LessonsLearned: []string{}}
}

type InvestigationProgress struct {
	CurrentPhase         string   `json:"current_phase"`
	CompletionPercentage float64  `json:"completion_percentage"`
	Milestones           []string `json:"milestones"`
}

func DefaultProgress() *InvestigationProgress {
	return &InvestigationProgress{CurrentPhase: "intake", Milestones: []string{}}
}

type ProblemVerification struct {
	Verified   bool       `json:"verified"`
	Method     string     `json:"method"`
	Notes      string     `json:"notes"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

type WorkingConclusion struct {
	Statement   string    `json:"statement"`
	Confidence  float64   `json:"confidence" validate:"gte=0,lte=1"`
	EvidenceIDs []string  `json:"evidence_ids"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type RootCauseConclusion struct {
	RootCause           string    `json:"root_cause"`
	Confidence          float64   `json:"confidence" validate:"gte=0,lte=1"`
	ContributingFactors []string  `json:"contributing_factors"`
	ConcludedAt         time.Time `json:"concluded_at"`
}

type PathSelection struct {
	SelectedPath     string    `json:"selected_path"`
	Rationale        string    `json:"rationale"`
	AlternativePaths []string  `json:"alternative_paths"`
	SelectedAt       time.Time `json:"selected_at"`
}

type DegradedMode struct {
	Reason      string    `json:"reason"`
	Limitations []string  `json:"limitations"`
	EnteredAt   time.Time `json:"entered_at"`
}

type EscalationState struct {
	EscalatedTo    string     `json:"escalated_to"`
	Reason         string     `json:"reason"`
	EscalatedAt    time.Time  `json:"escalated_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

var jsonNull = []byte("null")

func isAbsent(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// decodeRequired deserializes an always-present sub-object, substituting the
// type default when the stored column is NULL. Old rows predating a field are
// data, not errors.
func decodeRequired[T any](raw []byte, def func() *T) (*T, error) {
	out := def()
	if isAbsent(raw) {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeOptional deserializes a nullable sub-object; NULL means absent.
func decodeOptional[T any](raw []byte) (*T, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func DecodeConsulting(raw []byte) (*ConsultingData, error) {
	return decodeRequired(raw, DefaultConsulting)
}

func DecodeDocumentation(raw []byte) (*DocumentationData, error) {
	return decodeRequired(raw, DefaultDocumentation)
}

func DecodeProgress(raw []byte) (*InvestigationProgress, error) {
	return decodeRequired(raw, DefaultProgress)
}

func DecodeProblemVerification(raw []byte) (*ProblemVerification, error) {
	return decodeOptional[ProblemVerification](raw)
}

func DecodeWorkingConclusion(raw []byte) (*WorkingConclusion, error) {
	return decodeOptional[WorkingConclusion](raw)
}

func DecodeRootCauseConclusion(raw []byte) (*RootCauseConclusion, error) {
	return decodeOptional[RootCauseConclusion](raw)
}

func DecodePathSelection(raw []byte) (*PathSelection, error) {
	return decodeOptional[PathSelection](raw)
}

func DecodeDegradedMode(raw []byte) (*DegradedMode, error) {
	return decodeOptional[DegradedMode](raw)
}

func DecodeEscalationState(raw []byte) (*EscalationState, error) {
	return decodeOptional[EscalationState](raw)
}
