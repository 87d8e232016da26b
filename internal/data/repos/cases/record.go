package cases

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
)

// caseRecord is the root row of the hybrid schema: scalar columns for
// filterable fields, one JSONB column per embedded sub-object (NULL when the
// sub-object is absent). Child collections live in their own tables.
type caseRecord struct {
	CaseID         string `gorm:"column:case_id;type:varchar(17);primaryKey"`
	UserID         string `gorm:"column:user_id;type:varchar(100);not null;index"`
	OrganizationID string `gorm:"column:organization_id;type:varchar(100);not null;index"`
	Title          string `gorm:"column:title;type:varchar(200);not null"`
	Description    string `gorm:"column:description;type:text;not null;default:''"`
	Status         string `gorm:"column:status;type:varchar(20);not null;index"`
	Severity       string `gorm:"column:severity;type:varchar(10);not null;default:'medium'"`
	Category       string `gorm:"column:category;type:varchar(20);not null;default:'other'"`

	Tags datatypes.JSON `gorm:"column:tags;type:jsonb;not null;default:'[]'"`

	Consulting          datatypes.JSON `gorm:"column:consulting;type:jsonb"`
	Documentation       datatypes.JSON `gorm:"column:documentation;type:jsonb"`
	Progress            datatypes.JSON `gorm:"column:progress;type:jsonb"`
	ProblemVerification datatypes.JSON `gorm:"column:problem_verification;type:jsonb"`
	WorkingConclusion   datatypes.JSON `gorm:"column:working_conclusion;type:jsonb"`
	RootCauseConclusion datatypes.JSON `gorm:"column:root_cause_conclusion;type:jsonb"`
	PathSelection       datatypes.JSON `gorm:"column:path_selection;type:jsonb"`
	DegradedMode        datatypes.JSON `gorm:"column:degraded_mode;type:jsonb"`
	EscalationState     datatypes.JSON `gorm:"column:escalation_state;type:jsonb"`

	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
	LastActivityAt time.Time  `gorm:"column:last_activity_at;not null;index"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at;index"`
}

func (caseRecord) TableName() string { return "cases" }

// Migrate creates or updates every table the hybrid backend uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&caseRecord{},
		&cases.Evidence{},
		&cases.Hypothesis{},
		&cases.Solution{},
		&cases.UploadedFile{},
		&cases.Message{},
		&cases.StatusTransition{},
	)
}

// marshalEmbedded serializes a present sub-object, keeping the column NULL
// for an absent one.
func marshalEmbedded(v any, present bool) (datatypes.JSON, error) {
	if !present {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func recordFromCase(c *cases.Case) (*caseRecord, error) {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	rec := &caseRecord{
		CaseID:         c.CaseID,
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Title:          c.Title,
		Description:    c.Description,
		Status:         string(c.Status),
		Severity:       string(c.Severity),
		Category:       string(c.Category),
		Tags:           datatypes.JSON(tagsJSON),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		LastActivityAt: c.LastActivityAt,
		ResolvedAt:     c.ResolvedAt,
		ClosedAt:       c.ClosedAt,
	}

	embeds := []struct {
		dst     *datatypes.JSON
		src     any
		present bool
	}{
		{&rec.Consulting, c.Consulting, c.Consulting != nil},
		{&rec.Documentation, c.Documentation, c.Documentation != nil},
		{&rec.Progress, c.Progress, c.Progress != nil},
		{&rec.ProblemVerification, c.ProblemVerification, c.ProblemVerification != nil},
		{&rec.WorkingConclusion, c.WorkingConclusion, c.WorkingConclusion != nil},
		{&rec.RootCauseConclusion, c.RootCauseConclusion, c.RootCauseConclusion != nil},
		{&rec.PathSelection, c.PathSelection, c.PathSelection != nil},
		{&rec.DegradedMode, c.DegradedMode, c.DegradedMode != nil},
		{&rec.EscalationState, c.EscalationState, c.EscalationState != nil},
	}
	for _, e := range embeds {
		raw, err := marshalEmbedded(e.src, e.present)
		if err != nil {
			return nil, err
		}
		*e.dst = raw
	}
	return rec, nil
}
