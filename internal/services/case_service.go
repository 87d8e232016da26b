package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	repos "github.com/FaultMaven/fm-case-service/internal/data/repos/cases"
	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
	"github.com/FaultMaven/fm-case-service/internal/platform/logger"
)

var (
	ErrNotFound  = errors.New("case not found")
	ErrForbidden = errors.New("case belongs to another user")
)

// Actor identifies the caller. Identity arrives pre-authenticated from the
// gateway; this layer only enforces ownership.
type Actor struct {
	UserID         string
	OrganizationID string
}

// UpdateCaseInput patches mutable scalar fields; nil means "leave unchanged".
type UpdateCaseInput struct {
	Title       *string
	Description *string
	Severity    *cases.CaseSeverity
	Category    *cases.CaseCategory
	Tags        *[]string
}

type CaseService interface {
	CreateCase(dbc dbctx.Context, actor Actor, title, description string) (*cases.Case, error)
	GetCase(dbc dbctx.Context, actor Actor, caseID string) (*cases.Case, error)
	UpdateCase(dbc dbctx.Context, actor Actor, caseID string, in UpdateCaseInput) (*cases.Case, error)
	UpdateStatus(dbc dbctx.Context, actor Actor, caseID string, to cases.CaseStatus, reason string) (*cases.Case, error)
	CloseCase(dbc dbctx.Context, actor Actor, caseID string, reason string) (*cases.Case, error)
	DeleteCase(dbc dbctx.Context, actor Actor, caseID string) error
	ListCases(dbc dbctx.Context, actor Actor, status cases.CaseStatus, limit, offset int) ([]*cases.Case, int64, error)
	SearchCases(dbc dbctx.Context, actor Actor, query string, limit int) ([]*cases.Case, int64, error)

	AddEvidence(dbc dbctx.Context, actor Actor, caseID string, e cases.Evidence) (*cases.Case, error)
	UpsertHypothesis(dbc dbctx.Context, actor Actor, caseID string, h cases.Hypothesis) (*cases.Case, error)
	AddSolution(dbc dbctx.Context, actor Actor, caseID string, s cases.Solution) (*cases.Case, error)

	AddMessage(dbc dbctx.Context, actor Actor, caseID string, role cases.MessageRole, content string) error
	GetMessages(dbc dbctx.Context, actor Actor, caseID string, limit, offset int) ([]cases.Message, error)

	Analytics(dbc dbctx.Context, actor Actor, caseID string) (cases.CaseAnalytics, error)
	CleanupExpired(dbc dbctx.Context, maxAgeDays, batchSize int) (int64, error)
}

type caseService struct {
	repo repos.CaseRepository
	log  *logger.Logger
}

func NewCaseService(repo repos.CaseRepository, baseLog *logger.Logger) CaseService {
	return &caseService{
		repo: repo,
		log:  baseLog.With("service", "CaseService"),
	}
}

// owned loads a case and enforces that the actor owns it. A case in another
// organization is reported as not found rather than forbidden.
func (s *caseService) owned(dbc dbctx.Context, actor Actor, caseID string) (*cases.Case, error) {
	c, err := s.repo.Get(dbc, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil || (actor.OrganizationID != "" && c.OrganizationID != actor.OrganizationID) {
		return nil, ErrNotFound
	}
	if c.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *caseService) CreateCase(dbc dbctx.Context, actor Actor, title, description string) (*cases.Case, error) {
	c := cases.NewCase(actor.UserID, actor.OrganizationID, strings.TrimSpace(title), description)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	saved, err := s.repo.Save(dbc, c)
	if err != nil {
		return nil, err
	}
	s.log.Info("case created", "case_id", saved.CaseID, "user_id", actor.UserID)
	return saved, nil
}

func (s *caseService) GetCase(dbc dbctx.Context, actor Actor, caseID string) (*cases.Case, error) {
	return s.owned(dbc, actor, caseID)
}

func (s *caseService) UpdateCase(dbc dbctx.Context, actor Actor, caseID string, in UpdateCaseInput) (*cases.Case, error) {
	c, err := s.owned(dbc, actor, caseID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Severity != nil {
		c.Severity = *in.Severity
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.Tags != nil {
		tags := *in.Tags
		if tags == nil {
			tags = []string{}
		}
		c.Tags = tags
	}
	c.LastActivityAt = time.Now().UTC()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Save(dbc, c)
}

func (s *caseService) UpdateStatus(dbc dbctx.Context, actor Actor, caseID string, to cases.CaseStatus, reason string) (*cases.Case, error) {
	c, err := s.owned(dbc, actor, caseID)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyTransition(to, reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	saved, err := s.repo.Save(dbc, c)
	if err != nil {
		return nil, err
	}
	s.log.Info("case status updated", "case_id", caseID, "status", to)
	return saved, nil
}

func (s *caseService) CloseCase(dbc dbctx.Context, actor Actor, caseID string, reason string) (*cases.Case, error) {
	if reason == "" {
		reason = "closed by user"
	}
	return s.UpdateStatus(dbc, actor, caseID, cases.StatusClosed, reason)
}

func (s *caseService) DeleteCase(dbc dbctx.Context, actor Actor, caseID string) error {
	if _, err := s.owned(dbc, actor, caseID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(dbc, caseID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.log.Info("case deleted", "case_id", caseID, "user_id", actor.UserID)
	return nil
}

func (s *caseService) ListCases(dbc dbctx.Context, actor Actor, status cases.CaseStatus, limit, offset int) ([]*cases.Case, int64, error) {
	return s.repo.List(dbc, repos.ListFilter{
		UserID:         actor.UserID,
		OrganizationID: actor.OrganizationID,
		Status:         status,
		Limit:          limit,
		Offset:         offset,
	})
}

func (s *caseService) SearchCases(dbc dbctx.Context, actor Actor, query string, limit int) ([]*cases.Case, int64, error) {
	return s.repo.Search(dbc, repos.SearchQuery{
		Query:          query,
		UserID:         actor.UserID,
		OrganizationID: actor.OrganizationID,
		Limit:          limit,
	})
}

func (s *caseService) AddEvidence(dbc dbctx.Context, actor Actor, caseID string, e cases.Evidence) (*cases.Case, error) {
	c, err := s.owned(dbc, actor, caseID)
	if err != nil {
		return nil, err
	}
	if e.EvidenceID == "" {
		e.EvidenceID = cases.NewEvidenceID()
	}
	if e.UploadTimestamp.IsZero() {
		e.UploadTimestamp = time.Now().UTC()
	}
	c.Evidence = append(c.Evidence, e)
	c.LastActivityAt = time.Now().UTC()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Save(dbc, c)
}

func (s *caseService) UpsertHypothesis(dbc dbctx.Context, actor Actor, caseID string, h cases.Hypothesis) (*cases.Case, error) {
	c, err := s.owned(dbc, actor, caseID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if h.HypothesisID == "" {
		h.HypothesisID = cases.NewHypothesisID()
		h.ProposedAt = now
	} else if prev, ok := c.Hypotheses[h.HypothesisID]; ok {
		h.ProposedAt = prev.ProposedAt
	} else {
		return nil, fmt.Errorf("hypothesis %s not found on case %s", h.HypothesisID, caseID)
	}
	h.UpdatedAt = now
	if h.SupportingEvidenceIDs == nil {
		h.SupportingEvidenceIDs = []string{}
	}
	c.Hypotheses[h.HypothesisID] = h
	c.LastActivityAt = now
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Save(dbc, c)
}

func (s *caseService) AddSolution(dbc dbctx.Context, actor Actor, caseID string, sol cases.Solution) (*cases.Case, error) {
	c, err := s.owned(dbc, actor, caseID)
	if err != nil {
		return nil, err
	}
	if sol.SolutionID == "" {
		sol.SolutionID = cases.NewSolutionID()
	}
	if sol.ProposedAt.IsZero() {
		sol.ProposedAt = time.Now().UTC()
	}
	if sol.ImplementationSteps == nil {
		sol.ImplementationSteps = []string{}
	}
	c.Solutions = append(c.Solutions, sol)
	c.LastActivityAt = time.Now().UTC()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Save(dbc, c)
}

func (s *caseService) AddMessage(dbc dbctx.Context, actor Actor, caseID string, role cases.MessageRole, content string) error {
	if _, err := s.owned(dbc, actor, caseID); err != nil {
		return err
	}
	added, err := s.repo.AddMessage(dbc, caseID, cases.Message{
		MessageID: cases.NewMessageID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !added {
		return ErrNotFound
	}
	return nil
}

func (s *caseService) GetMessages(dbc dbctx.Context, actor Actor, caseID string, limit, offset int) ([]cases.Message, error) {
	if _, err := s.owned(dbc, actor, caseID); err != nil {
		return nil, err
	}
	return s.repo.GetMessages(dbc, caseID, limit, offset)
}

func (s *caseService) Analytics(dbc dbctx.Context, actor Actor, caseID string) (cases.CaseAnalytics, error) {
	if _, err := s.owned(dbc, actor, caseID); err != nil {
		return cases.CaseAnalytics{}, err
	}
	return s.repo.Analytics(dbc, caseID)
}

func (s *caseService) CleanupExpired(dbc dbctx.Context, maxAgeDays, batchSize int) (int64, error) {
	return s.repo.CleanupExpired(dbc, maxAgeDays, batchSize)
}
