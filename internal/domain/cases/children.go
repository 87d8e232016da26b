package cases

import (
	"time"

	"gorm.io/datatypes"
)

// Child collection types double as GORM table models: each row carries the
// owning case_id and a string primary key with the documented length bound.

type Evidence struct {
	EvidenceID          string         `gorm:"column:evidence_id;type:varchar(15);primaryKey" json:"evidence_id" validate:"required,max=15"`
	CaseID              string         `gorm:"column:case_id;type:varchar(17);not null;index" json:"-"`
	Category            string         `gorm:"column:category;type:varchar(50);not null;index" json:"category"`
	Summary             string         `gorm:"column:summary;type:text;not null;default:''" json:"summary"`
	PreprocessedContent string         `gorm:"column:preprocessed_content;type:text;not null;default:''" json:"preprocessed_content"`
	ContentRef          string         `gorm:"column:content_ref;type:text;not null;default:''" json:"content_ref"`
	FileSize            int64          `gorm:"column:file_size;not null;default:0" json:"file_size"`
	Filename            string         `gorm:"column:filename;type:varchar(255);not null;default:''" json:"filename"`
	UploadTimestamp     time.Time      `gorm:"column:upload_timestamp;not null" json:"upload_timestamp"`
	Metadata            datatypes.JSON `gorm:"column:metadata;type:jsonb;not null;default:'{}'" json:"metadata"`
}

func (Evidence) TableName() string { return "evidence" }

type HypothesisStatus string

const (
	HypothesisProposed    HypothesisStatus = "proposed"
	HypothesisTesting     HypothesisStatus = "testing"
	HypothesisValidated   HypothesisStatus = "validated"
	HypothesisInvalidated HypothesisStatus = "invalidated"
	HypothesisDeferred    HypothesisStatus = "deferred"
)

type Hypothesis struct {
	HypothesisID          string           `gorm:"column:hypothesis_id;type:varchar(15);primaryKey" json:"hypothesis_id" validate:"required,max=15"`
	CaseID                string           `gorm:"column:case_id;type:varchar(17);not null;index" json:"-"`
	Description           string           `gorm:"column:description;type:text;not null" json:"description"`
	Status                HypothesisStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status" validate:"required,oneof=proposed testing validated invalidated deferred"`
	ConfidenceScore       float64          `gorm:"column:confidence_score;not null;default:0" json:"confidence_score" validate:"gte=0,lte=1"`
	SupportingEvidenceIDs []string         `gorm:"column:supporting_evidence_ids;type:jsonb;serializer:json" json:"supporting_evidence_ids"`
	ValidationResult      string           `gorm:"column:validation_result;type:text;not null;default:''" json:"validation_result"`
	ProposedAt            time.Time        `gorm:"column:proposed_at;not null" json:"proposed_at"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Hypothesis) TableName() string { return "hypotheses" }

type SolutionStatus string

const (
	SolutionProposed    SolutionStatus = "proposed"
	SolutionInProgress  SolutionStatus = "in_progress"
	SolutionImplemented SolutionStatus = "implemented"
	SolutionVerified    SolutionStatus = "verified"
	SolutionRejected    SolutionStatus = "rejected"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Solution struct {
	SolutionID          string         `gorm:"column:solution_id;type:varchar(15);primaryKey" json:"solution_id" validate:"required,max=15"`
	CaseID              string         `gorm:"column:case_id;type:varchar(17);not null;index" json:"-"`
	Description         string         `gorm:"column:description;type:text;not null" json:"description"`
	Status              SolutionStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status" validate:"required,oneof=proposed in_progress implemented verified rejected"`
	ImplementationSteps []string       `gorm:"column:implementation_steps;type:jsonb;serializer:json" json:"implementation_steps"`
	RiskLevel           RiskLevel      `gorm:"column:risk_level;type:varchar(10);not null" json:"risk_level" validate:"required,oneof=low medium high critical"`
	VerificationResult  string         `gorm:"column:verification_result;type:text;not null;default:''" json:"verification_result"`
	ProposedAt          time.Time      `gorm:"column:proposed_at;not null" json:"proposed_at"`
	ImplementedAt       *time.Time     `gorm:"column:implemented_at" json:"implemented_at,omitempty"`
}

func (Solution) TableName() string { return "solutions" }

type UploadedFile struct {
	FileID               string    `gorm:"column:file_id;type:varchar(15);primaryKey" json:"file_id" validate:"required,max=15"`
	CaseID               string    `gorm:"column:case_id;type:varchar(17);not null;index" json:"-"`
	Filename             string    `gorm:"column:filename;type:varchar(255);not null" json:"filename"`
	SizeBytes            int64     `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	DataType             string    `gorm:"column:data_type;type:varchar(50);not null;default:''" json:"data_type"`
	UploadedAtTurn       int       `gorm:"column:uploaded_at_turn;not null;default:0" json:"uploaded_at_turn"`
	UploadedAt           time.Time `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
	SourceType           string    `gorm:"column:source_type;type:varchar(50);not null;default:''" json:"source_type"`
	ContentRef           string    `gorm:"column:content_ref;type:text;not null;default:''" json:"content_ref"`
	PreprocessingSummary string    `gorm:"column:preprocessing_summary;type:text;not null;default:''" json:"preprocessing_summary"`
}

func (UploadedFile) TableName() string { return "uploaded_files" }

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a conversation turn. Rows only ever accumulate; nothing in the
// repository mutates or removes a recorded message.
type Message struct {
	MessageID string         `gorm:"column:message_id;type:varchar(20);primaryKey" json:"message_id" validate:"required,max=20"`
	CaseID    string         `gorm:"column:case_id;type:varchar(17);not null;index" json:"-"`
	Role      MessageRole    `gorm:"column:role;type:varchar(10);not null" json:"role" validate:"required,oneof=user assistant system"`
	Content   string         `gorm:"column:content;type:text;not null;default:''" json:"content"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb;not null;default:'{}'" json:"metadata"`
}

func (Message) TableName() string { return "case_messages" }

// StatusTransition is one append-only audit entry. The composite unique index
// lets re-saves of the same history insert-or-do-nothing.
type StatusTransition struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	CaseID         string     `gorm:"column:case_id;type:varchar(17);not null;index;uniqueIndex:ux_case_status_transition" json:"-"`
	FromStatus     CaseStatus `gorm:"column:from_status;type:varchar(20);not null;default:''" json:"from_status"`
	ToStatus       CaseStatus `gorm:"column:to_status;type:varchar(20);not null;uniqueIndex:ux_case_status_transition" json:"to_status"`
	Reason         string     `gorm:"column:reason;type:text;not null;default:''" json:"reason"`
	TransitionedAt time.Time  `gorm:"column:transitioned_at;not null;uniqueIndex:ux_case_status_transition" json:"transitioned_at"`
}

func (StatusTransition) TableName() string { return "case_status_transitions" }
