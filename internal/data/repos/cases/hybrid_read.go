package cases

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
)

// getCaseSQL hydrates the whole aggregate in one round trip: every child
// table is LEFT JOINed and folded into a JSON array per child. DISTINCT
// deduplicates the cross-join fan-out, which forbids ORDER BY inside the
// aggregate, so rowToCase re-sorts in Go.
const getCaseSQL = `
SELECT
  c.*,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'evidence_id', e.evidence_id,
    'category', e.category,
    'summary', e.summary,
    'preprocessed_content', e.preprocessed_content,
    'content_ref', e.content_ref,
    'file_size', e.file_size,
    'filename', e.filename,
    'upload_timestamp', e.upload_timestamp,
    'metadata', e.metadata
  )) FILTER (WHERE e.evidence_id IS NOT NULL), '[]'::jsonb) AS evidence_rows,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'hypothesis_id', h.hypothesis_id,
    'description', h.description,
    'status', h.status,
    'confidence_score', h.confidence_score,
    'supporting_evidence_ids', h.supporting_evidence_ids,
    'validation_result', h.validation_result,
    'proposed_at', h.proposed_at,
    'updated_at', h.updated_at
  )) FILTER (WHERE h.hypothesis_id IS NOT NULL), '[]'::jsonb) AS hypothesis_rows,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'solution_id', s.solution_id,
    'description', s.description,
    'status', s.status,
    'implementation_steps', s.implementation_steps,
    'risk_level', s.risk_level,
    'verification_result', s.verification_result,
    'proposed_at', s.proposed_at,
    'implemented_at', s.implemented_at
  )) FILTER (WHERE s.solution_id IS NOT NULL), '[]'::jsonb) AS solution_rows,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'file_id', f.file_id,
    'filename', f.filename,
    'size_bytes', f.size_bytes,
    'data_type', f.data_type,
    'uploaded_at_turn', f.uploaded_at_turn,
    'uploaded_at', f.uploaded_at,
    'source_type', f.source_type,
    'content_ref', f.content_ref,
    'preprocessing_summary', f.preprocessing_summary
  )) FILTER (WHERE f.file_id IS NOT NULL), '[]'::jsonb) AS file_rows,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'message_id', m.message_id,
    'role', m.role,
    'content', m.content,
    'created_at', m.created_at,
    'metadata', m.metadata
  )) FILTER (WHERE m.message_id IS NOT NULL), '[]'::jsonb) AS message_rows,
  COALESCE(jsonb_agg(DISTINCT jsonb_build_object(
    'from_status', st.from_status,
    'to_status', st.to_status,
    'reason', st.reason,
    'transitioned_at', st.transitioned_at
  )) FILTER (WHERE st.id IS NOT NULL), '[]'::jsonb) AS transition_rows
FROM cases c
LEFT JOIN evidence e ON e.case_id = c.case_id
LEFT JOIN hypotheses h ON h.case_id = c.case_id
LEFT JOIN solutions s ON s.case_id = c.case_id
LEFT JOIN uploaded_files f ON f.case_id = c.case_id
LEFT JOIN case_messages m ON m.case_id = c.case_id
LEFT JOIN case_status_transitions st ON st.case_id = c.case_id
WHERE c.case_id = ?
GROUP BY c.case_id`

// The record is held in a named, exported field: gorm's schema parser only
// walks exported field names, so an anonymous field of an unexported type
// would be skipped and the root columns would never scan.
type caseJoinRow struct {
	Root           caseRecord     `gorm:"embedded"`
	EvidenceRows   datatypes.JSON `gorm:"column:evidence_rows"`
	HypothesisRows datatypes.JSON `gorm:"column:hypothesis_rows"`
	SolutionRows   datatypes.JSON `gorm:"column:solution_rows"`
	FileRows       datatypes.JSON `gorm:"column:file_rows"`
	MessageRows    datatypes.JSON `gorm:"column:message_rows"`
	TransitionRows datatypes.JSON `gorm:"column:transition_rows"`
}

func (r *hybridRepo) Get(dbc dbctx.Context, caseID string) (*cases.Case, error) {
	const op = "cases.Get"
	var row caseJoinRow
	res := r.conn(dbc).Raw(getCaseSQL, caseID).Scan(&row)
	if res.Error != nil {
		return nil, wrapErr(op, caseID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	c, err := rowToCase(&row)
	if err != nil {
		return nil, wrapErr(op, caseID, err)
	}
	return c, nil
}

func rowToCase(row *caseJoinRow) (*cases.Case, error) {
	rec := &row.Root
	c := &cases.Case{
		CaseID:         rec.CaseID,
		UserID:         rec.UserID,
		OrganizationID: rec.OrganizationID,
		Title:          rec.Title,
		Description:    rec.Description,
		Status:         cases.CaseStatus(rec.Status),
		Severity:       cases.CaseSeverity(rec.Severity),
		Category:       cases.CaseCategory(rec.Category),
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		LastActivityAt: rec.LastActivityAt,
		ResolvedAt:     rec.ResolvedAt,
		ClosedAt:       rec.ClosedAt,
	}

	c.Tags = []string{}
	if len(rec.Tags) > 0 {
		if err := json.Unmarshal(rec.Tags, &c.Tags); err != nil {
			return nil, err
		}
	}

	var err error
	if c.Consulting, err = cases.DecodeConsulting(rec.Consulting); err != nil {
		return nil, err
	}
	if c.Documentation, err = cases.DecodeDocumentation(rec.Documentation); err != nil {
		return nil, err
	}
	if c.Progress, err = cases.DecodeProgress(rec.Progress); err != nil {
		return nil, err
	}
	if c.ProblemVerification, err = cases.DecodeProblemVerification(rec.ProblemVerification); err != nil {
		return nil, err
	}
	if c.WorkingConclusion, err = cases.DecodeWorkingConclusion(rec.WorkingConclusion); err != nil {
		return nil, err
	}
	if c.RootCauseConclusion, err = cases.DecodeRootCauseConclusion(rec.RootCauseConclusion); err != nil {
		return nil, err
	}
	if c.PathSelection, err = cases.DecodePathSelection(rec.PathSelection); err != nil {
		return nil, err
	}
	if c.DegradedMode, err = cases.DecodeDegradedMode(rec.DegradedMode); err != nil {
		return nil, err
	}
	if c.EscalationState, err = cases.DecodeEscalationState(rec.EscalationState); err != nil {
		return nil, err
	}

	c.Evidence = []cases.Evidence{}
	if err := json.Unmarshal(row.EvidenceRows, &c.Evidence); err != nil {
		return nil, err
	}
	for i := range c.Evidence {
		c.Evidence[i].CaseID = c.CaseID
	}
	sort.Slice(c.Evidence, func(i, j int) bool {
		if c.Evidence[i].UploadTimestamp.Equal(c.Evidence[j].UploadTimestamp) {
			return c.Evidence[i].EvidenceID < c.Evidence[j].EvidenceID
		}
		return c.Evidence[i].UploadTimestamp.Before(c.Evidence[j].UploadTimestamp)
	})

	var hyps []cases.Hypothesis
	if err := json.Unmarshal(row.HypothesisRows, &hyps); err != nil {
		return nil, err
	}
	c.Hypotheses = make(map[string]cases.Hypothesis, len(hyps))
	for _, h := range hyps {
		h.CaseID = c.CaseID
		if h.SupportingEvidenceIDs == nil {
			h.SupportingEvidenceIDs = []string{}
		}
		c.Hypotheses[h.HypothesisID] = h
	}

	c.Solutions = []cases.Solution{}
	if err := json.Unmarshal(row.SolutionRows, &c.Solutions); err != nil {
		return nil, err
	}
	for i := range c.Solutions {
		c.Solutions[i].CaseID = c.CaseID
		if c.Solutions[i].ImplementationSteps == nil {
			c.Solutions[i].ImplementationSteps = []string{}
		}
	}
	sort.Slice(c.Solutions, func(i, j int) bool {
		if c.Solutions[i].ProposedAt.Equal(c.Solutions[j].ProposedAt) {
			return c.Solutions[i].SolutionID < c.Solutions[j].SolutionID
		}
		return c.Solutions[i].ProposedAt.Before(c.Solutions[j].ProposedAt)
	})

	c.UploadedFiles = []cases.UploadedFile{}
	if err := json.Unmarshal(row.FileRows, &c.UploadedFiles); err != nil {
		return nil, err
	}
	for i := range c.UploadedFiles {
		c.UploadedFiles[i].CaseID = c.CaseID
	}
	sort.Slice(c.UploadedFiles, func(i, j int) bool {
		if c.UploadedFiles[i].UploadedAt.Equal(c.UploadedFiles[j].UploadedAt) {
			return c.UploadedFiles[i].FileID < c.UploadedFiles[j].FileID
		}
		return c.UploadedFiles[i].UploadedAt.Before(c.UploadedFiles[j].UploadedAt)
	})

	c.Messages = []cases.Message{}
	if err := json.Unmarshal(row.MessageRows, &c.Messages); err != nil {
		return nil, err
	}
	for i := range c.Messages {
		c.Messages[i].CaseID = c.CaseID
	}
	sort.Slice(c.Messages, func(i, j int) bool {
		if c.Messages[i].CreatedAt.Equal(c.Messages[j].CreatedAt) {
			return c.Messages[i].MessageID < c.Messages[j].MessageID
		}
		return c.Messages[i].CreatedAt.Before(c.Messages[j].CreatedAt)
	})

	c.StatusHistory = []cases.StatusTransition{}
	if err := json.Unmarshal(row.TransitionRows, &c.StatusHistory); err != nil {
		return nil, err
	}
	for i := range c.StatusHistory {
		c.StatusHistory[i].CaseID = c.CaseID
	}
	sort.Slice(c.StatusHistory, func(i, j int) bool {
		return c.StatusHistory[i].TransitionedAt.Before(c.StatusHistory[j].TransitionedAt)
	})

	return c, nil
}

func (r *hybridRepo) List(dbc dbctx.Context, f ListFilter) ([]*cases.Case, int64, error) {
	const op = "cases.List"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	base := func() *gorm.DB {
		q := r.conn(dbc).Model(&caseRecord{})
		if f.UserID != "" {
			q = q.Where("user_id = ?", f.UserID)
		}
		if f.OrganizationID != "" {
			q = q.Where("organization_id = ?", f.OrganizationID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, wrapErr(op, "", err)
	}

	var ids []string
	if err := base().
		Order("last_activity_at DESC, case_id ASC").
		Limit(limit).
		Offset(offset).
		Pluck("case_id", &ids).Error; err != nil {
		return nil, 0, wrapErr(op, "", err)
	}

	out, err := r.hydrate(dbc, ids)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// searchMatchSQL is the lexical match over title, description, the consulting
// initial description and preprocessed evidence content. Requires the
// evidence LEFT JOIN alias e.
const searchMatchSQL = `(
  to_tsvector('english', c.title || ' ' || c.description || ' ' || coalesce(c.consulting->>'initial_description', '')) @@ plainto_tsquery('english', ?)
  OR to_tsvector('english', coalesce(e.summary, '') || ' ' || coalesce(e.preprocessed_content, '')) @@ plainto_tsquery('english', ?)
)`

func (r *hybridRepo) Search(dbc dbctx.Context, q SearchQuery) ([]*cases.Case, int64, error) {
	const op = "cases.Search"
	text := strings.TrimSpace(q.Query)
	if text == "" {
		return []*cases.Case{}, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where := searchMatchSQL
	whereArgs := []any{text, text}
	if q.UserID != "" {
		where += " AND c.user_id = ?"
		whereArgs = append(whereArgs, q.UserID)
	}
	if q.OrganizationID != "" {
		where += " AND c.organization_id = ?"
		whereArgs = append(whereArgs, q.OrganizationID)
	}

	countSQL := `
SELECT COUNT(DISTINCT c.case_id)
FROM cases c
LEFT JOIN evidence e ON e.case_id = c.case_id
WHERE ` + where
	var total int64
	if err := r.conn(dbc).Raw(countSQL, whereArgs...).Scan(&total).Error; err != nil {
		return nil, 0, wrapErr(op, "", err)
	}

	// Title relevance ranks the page; activity recency breaks ties.
	pageSQL := `
SELECT c.case_id,
       ts_rank(to_tsvector('english', c.title || ' ' || c.description), plainto_tsquery('english', ?)) AS rank
FROM cases c
LEFT JOIN evidence e ON e.case_id = c.case_id
WHERE ` + where + `
GROUP BY c.case_id
ORDER BY rank DESC, c.last_activity_at DESC, c.case_id ASC
LIMIT ?`
	pageArgs := append([]any{text}, whereArgs...)
	pageArgs = append(pageArgs, limit)

	var hits []struct {
		CaseID string  `gorm:"column:case_id"`
		Rank   float64 `gorm:"column:rank"`
	}
	if err := r.conn(dbc).Raw(pageSQL, pageArgs...).Scan(&hits).Error; err != nil {
		return nil, 0, wrapErr(op, "", err)
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.CaseID)
	}

	out, err := r.hydrate(dbc, ids)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// hydrate loads full aggregates for a resolved page of ids, preserving page
// order. Get is the single hydration path for every read.
func (r *hybridRepo) hydrate(dbc dbctx.Context, ids []string) ([]*cases.Case, error) {
	out := make([]*cases.Case, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(dbc, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// analyticsSQL uses scalar subqueries per child table so counts and sums stay
// correct regardless of collection cardinalities.
const analyticsSQL = `
SELECT
  c.case_id,
  c.status,
  c.created_at,
  c.last_activity_at,
  c.resolved_at,
  (c.working_conclusion IS NOT NULL)   AS has_working_conclusion,
  (c.root_cause_conclusion IS NOT NULL) AS has_root_cause,
  (c.degraded_mode IS NOT NULL)        AS is_degraded,
  (c.escalation_state IS NOT NULL)     AS is_escalated,
  (SELECT COUNT(*) FROM evidence e WHERE e.case_id = c.case_id)   AS evidence_count,
  (SELECT COUNT(*) FROM hypotheses h WHERE h.case_id = c.case_id) AS hypothesis_count,
  (SELECT COUNT(*) FROM hypotheses h WHERE h.case_id = c.case_id AND h.status = 'validated') AS validated_hypotheses,
  (SELECT COUNT(*) FROM solutions s WHERE s.case_id = c.case_id)  AS solution_count,
  (SELECT COUNT(*) FROM solutions s WHERE s.case_id = c.case_id AND s.status IN ('implemented', 'verified')) AS implemented_solutions,
  (SELECT COUNT(*) FROM case_messages m WHERE m.case_id = c.case_id) AS message_count,
  (SELECT COUNT(*) FROM uploaded_files f WHERE f.case_id = c.case_id) AS file_count,
  (SELECT COALESCE(SUM(f.size_bytes), 0) FROM uploaded_files f WHERE f.case_id = c.case_id) AS total_file_bytes
FROM cases c
WHERE c.case_id = ?`

type analyticsRow struct {
	CaseID               string     `gorm:"column:case_id"`
	Status               string     `gorm:"column:status"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	LastActivityAt       time.Time  `gorm:"column:last_activity_at"`
	ResolvedAt           *time.Time `gorm:"column:resolved_at"`
	HasWorkingConclusion bool       `gorm:"column:has_working_conclusion"`
	HasRootCause         bool       `gorm:"column:has_root_cause"`
	IsDegraded           bool       `gorm:"column:is_degraded"`
	IsEscalated          bool       `gorm:"column:is_escalated"`
	EvidenceCount        int64      `gorm:"column:evidence_count"`
	HypothesisCount      int64      `gorm:"column:hypothesis_count"`
	ValidatedHypotheses  int64      `gorm:"column:validated_hypotheses"`
	SolutionCount        int64      `gorm:"column:solution_count"`
	ImplementedSolutions int64      `gorm:"column:implemented_solutions"`
	MessageCount         int64      `gorm:"column:message_count"`
	FileCount            int64      `gorm:"column:file_count"`
	TotalFileBytes       int64      `gorm:"column:total_file_bytes"`
}

func (r *hybridRepo) Analytics(dbc dbctx.Context, caseID string) (cases.CaseAnalytics, error) {
	const op = "cases.Analytics"
	var row analyticsRow
	res := r.conn(dbc).Raw(analyticsSQL, caseID).Scan(&row)
	if res.Error != nil {
		return cases.CaseAnalytics{}, wrapErr(op, caseID, res.Error)
	}
	if res.RowsAffected == 0 {
		return cases.CaseAnalytics{}, nil
	}

	a := cases.CaseAnalytics{
		CaseID:               row.CaseID,
		Status:               cases.CaseStatus(row.Status),
		EvidenceCount:        row.EvidenceCount,
		HypothesisCount:      row.HypothesisCount,
		ValidatedHypotheses:  row.ValidatedHypotheses,
		SolutionCount:        row.SolutionCount,
		ImplementedSolutions: row.ImplementedSolutions,
		MessageCount:         row.MessageCount,
		FileCount:            row.FileCount,
		TotalFileBytes:       row.TotalFileBytes,
		HasWorkingConclusion: row.HasWorkingConclusion,
		HasRootCause:         row.HasRootCause,
		IsDegraded:           row.IsDegraded,
		IsEscalated:          row.IsEscalated,
		CreatedAt:            row.CreatedAt,
		LastActivityAt:       row.LastActivityAt,
		ResolvedAt:           row.ResolvedAt,
	}
	if row.ResolvedAt != nil {
		a.ResolutionSeconds = row.ResolvedAt.Sub(row.CreatedAt).Seconds()
	}
	return a, nil
}
