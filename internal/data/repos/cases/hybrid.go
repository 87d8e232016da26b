package cases

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
	"github.com/FaultMaven/fm-case-service/internal/platform/logger"
)

// hybridRepo is the production backend. The aggregate is split across the
// cases root table (scalars + embedded JSONB) and six normalized child
// tables; writes are differential upserts inside one transaction, reads are
// a single joined/aggregated query.
type hybridRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHybridRepository(db *gorm.DB, log *logger.Logger) CaseRepository {
	return &hybridRepo{db: db, log: log.With("repo", "HybridCaseRepository")}
}

func (r *hybridRepo) ctx(dbc dbctx.Context) context.Context {
	if dbc.Ctx != nil {
		return dbc.Ctx
	}
	return context.Background()
}

func (r *hybridRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(r.ctx(dbc))
	}
	return r.db.WithContext(r.ctx(dbc))
}

// inTx runs fn inside the caller's transaction when one was handed in,
// otherwise opens its own. Steps are not individually compensable; atomicity
// comes from rollback.
func (r *hybridRepo) inTx(dbc dbctx.Context, fn func(tx *gorm.DB) error) error {
	if dbc.Tx != nil {
		return fn(dbc.Tx.WithContext(r.ctx(dbc)))
	}
	return r.db.WithContext(r.ctx(dbc)).Transaction(fn)
}

// caseUpdateColumns is everything the root upsert rewrites on conflict.
// case_id and created_at are immutable.
var caseUpdateColumns = []string{
	"user_id", "organization_id", "title", "description", "status",
	"severity", "category", "tags",
	"consulting", "documentation", "progress", "problem_verification",
	"working_conclusion", "root_cause_conclusion", "path_selection",
	"degraded_mode", "escalation_state",
	"updated_at", "last_activity_at", "resolved_at", "closed_at",
}

func (r *hybridRepo) Save(dbc dbctx.Context, c *cases.Case) (*cases.Case, error) {
	const op = "cases.Save"
	c.UpdatedAt = time.Now().UTC()

	rec, err := recordFromCase(c)
	if err != nil {
		return nil, wrapErr(op, c.CaseID, err)
	}

	err = r.inTx(dbc, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "case_id"}},
			DoUpdates: clause.AssignmentColumns(caseUpdateColumns),
		}).Create(rec).Error; err != nil {
			return err
		}
		if err := r.upsertEvidence(tx, c.CaseID, c.Evidence); err != nil {
			return err
		}
		if err := r.upsertHypotheses(tx, c.CaseID, c.Hypotheses); err != nil {
			return err
		}
		if err := r.upsertSolutions(tx, c.CaseID, c.Solutions); err != nil {
			return err
		}
		if err := r.upsertUploadedFiles(tx, c.CaseID, c.UploadedFiles); err != nil {
			return err
		}
		if err := r.appendTransitions(tx, c.CaseID, c.StatusHistory); err != nil {
			return err
		}
		return r.appendMessages(tx, c.CaseID, c.Messages)
	})
	if err != nil {
		return nil, wrapErr(op, c.CaseID, err)
	}
	return c, nil
}

// upsertEvidence applies the differential upsert: the in-memory collection
// drives membership, so rows whose id is gone get deleted before the
// remaining items are inserted-or-updated.
func (r *hybridRepo) upsertEvidence(tx *gorm.DB, caseID string, list []cases.Evidence) error {
	ids := make([]string, 0, len(list))
	rows := make([]cases.Evidence, 0, len(list))
	for _, e := range list {
		e.CaseID = caseID
		if e.Metadata == nil {
			e.Metadata = datatypes.JSON([]byte("{}"))
		}
		ids = append(ids, e.EvidenceID)
		rows = append(rows, e)
	}
	if err := deleteStale(tx, &cases.Evidence{}, "evidence_id", caseID, ids); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "evidence_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "summary", "preprocessed_content", "content_ref",
			"file_size", "filename", "upload_timestamp", "metadata",
		}),
	}).Create(&rows).Error
}

func (r *hybridRepo) upsertHypotheses(tx *gorm.DB, caseID string, byID map[string]cases.Hypothesis) error {
	ids := make([]string, 0, len(byID))
	rows := make([]cases.Hypothesis, 0, len(byID))
	for id, h := range byID {
		h.HypothesisID = id
		h.CaseID = caseID
		if h.SupportingEvidenceIDs == nil {
			h.SupportingEvidenceIDs = []string{}
		}
		ids = append(ids, id)
		rows = append(rows, h)
	}
	if err := deleteStale(tx, &cases.Hypothesis{}, "hypothesis_id", caseID, ids); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hypothesis_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "status", "confidence_score",
			"supporting_evidence_ids", "validation_result", "updated_at",
		}),
	}).Create(&rows).Error
}

func (r *hybridRepo) upsertSolutions(tx *gorm.DB, caseID string, list []cases.Solution) error {
	ids := make([]string, 0, len(list))
	rows := make([]cases.Solution, 0, len(list))
	for _, s := range list {
		s.CaseID = caseID
		if s.ImplementationSteps == nil {
			s.ImplementationSteps = []string{}
		}
		ids = append(ids, s.SolutionID)
		rows = append(rows, s)
	}
	if err := deleteStale(tx, &cases.Solution{}, "solution_id", caseID, ids); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "solution_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "status", "implementation_steps", "risk_level",
			"verification_result", "implemented_at",
		}),
	}).Create(&rows).Error
}

func (r *hybridRepo) upsertUploadedFiles(tx *gorm.DB, caseID string, list []cases.UploadedFile) error {
	ids := make([]string, 0, len(list))
	rows := make([]cases.UploadedFile, 0, len(list))
	for _, f := range list {
		f.CaseID = caseID
		ids = append(ids, f.FileID)
		rows = append(rows, f)
	}
	if err := deleteStale(tx, &cases.UploadedFile{}, "file_id", caseID, ids); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filename", "size_bytes", "data_type", "uploaded_at_turn",
			"uploaded_at", "source_type", "content_ref", "preprocessing_summary",
		}),
	}).Create(&rows).Error
}

// deleteStale removes child rows whose id is no longer present in the
// aggregate. An empty id set clears the whole collection.
func deleteStale(tx *gorm.DB, model any, idColumn, caseID string, ids []string) error {
	q := tx.Where("case_id = ?", caseID)
	if len(ids) > 0 {
		q = q.Where(idColumn+" NOT IN ?", ids)
	}
	return q.Delete(model).Error
}

// appendTransitions is insert-or-do-nothing: a recorded transition is never
// altered or removed by the save path.
func (r *hybridRepo) appendTransitions(tx *gorm.DB, caseID string, history []cases.StatusTransition) error {
	if len(history) == 0 {
		return nil
	}
	rows := make([]cases.StatusTransition, 0, len(history))
	for _, t := range history {
		t.ID = 0
		t.CaseID = caseID
		rows = append(rows, t)
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "case_id"}, {Name: "to_status"}, {Name: "transitioned_at"},
		},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *hybridRepo) appendMessages(tx *gorm.DB, caseID string, msgs []cases.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]cases.Message, 0, len(msgs))
	for _, m := range msgs {
		m.CaseID = caseID
		if m.MessageID == "" {
			m.MessageID = cases.NewMessageID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if m.Metadata == nil {
			m.Metadata = datatypes.JSON([]byte("{}"))
		}
		rows = append(rows, m)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

var childModels = []any{
	&cases.Evidence{},
	&cases.Hypothesis{},
	&cases.Solution{},
	&cases.UploadedFile{},
	&cases.Message{},
	&cases.StatusTransition{},
}

func (r *hybridRepo) Delete(dbc dbctx.Context, caseID string) (bool, error) {
	const op = "cases.Delete"
	deleted := false
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&caseRecord{}).Where("case_id = ?", caseID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		// Cascade: child rows go first, then the root.
		for _, model := range childModels {
			if err := tx.Where("case_id = ?", caseID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("case_id = ?", caseID).Delete(&caseRecord{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, wrapErr(op, caseID, err)
	}
	return deleted, nil
}

func (r *hybridRepo) AddMessage(dbc dbctx.Context, caseID string, msg cases.Message) (bool, error) {
	const op = "cases.AddMessage"
	added := false
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&caseRecord{}).Where("case_id = ?", caseID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if err := r.appendMessages(tx, caseID, []cases.Message{msg}); err != nil {
			return err
		}
		if err := tx.Model(&caseRecord{}).Where("case_id = ?", caseID).
			Update("last_activity_at", time.Now().UTC()).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, wrapErr(op, caseID, err)
	}
	return added, nil
}

func (r *hybridRepo) GetMessages(dbc dbctx.Context, caseID string, limit, offset int) ([]cases.Message, error) {
	const op = "cases.GetMessages"
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []cases.Message
	if err := r.conn(dbc).
		Model(&cases.Message{}).
		Where("case_id = ?", caseID).
		Order("created_at ASC, message_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, wrapErr(op, caseID, err)
	}
	if out == nil {
		out = []cases.Message{}
	}
	return out, nil
}

func (r *hybridRepo) TouchActivity(dbc dbctx.Context, caseID string) (bool, error) {
	const op = "cases.TouchActivity"
	res := r.conn(dbc).
		Model(&caseRecord{}).
		Where("case_id = ?", caseID).
		Update("last_activity_at", time.Now().UTC())
	if res.Error != nil {
		return false, wrapErr(op, caseID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *hybridRepo) CleanupExpired(dbc dbctx.Context, maxAgeDays, batchSize int) (int64, error) {
	const op = "cases.CleanupExpired"
	if batchSize <= 0 {
		batchSize = 100
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	// Candidates are selected and locked inside the deletion transaction; a
	// case reopened by a concurrent writer never qualifies by the time the
	// deletes run.
	var removed int64
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&caseRecord{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND closed_at IS NOT NULL AND closed_at < ?", string(cases.StatusClosed), cutoff).
			Order("closed_at ASC").
			Limit(batchSize).
			Pluck("case_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, model := range childModels {
			if err := tx.Where("case_id IN ?", ids).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("case_id IN ?", ids).Delete(&caseRecord{}).Error; err != nil {
			return err
		}
		removed = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, wrapErr(op, "", err)
	}
	if removed > 0 {
		r.log.Info("cleaned up expired cases", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}
