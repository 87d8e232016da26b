package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	cases "github.com/FaultMaven/fm-case-service/internal/domain/cases"
	"github.com/FaultMaven/fm-case-service/internal/http/middleware"
	"github.com/FaultMaven/fm-case-service/internal/http/response"
	"github.com/FaultMaven/fm-case-service/internal/platform/dbctx"
	"github.com/FaultMaven/fm-case-service/internal/services"
)

type CaseHandler struct {
	cases services.CaseService
}

func NewCaseHandler(caseService services.CaseService) *CaseHandler {
	return &CaseHandler{cases: caseService}
}

func respondServiceError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "case_not_found", err)
	case errors.Is(err, services.ErrForbidden):
		response.RespondError(c, http.StatusForbidden, "forbidden", err)
	default:
		response.RespondError(c, http.StatusBadRequest, code, err)
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

type createCaseReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req createCaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	created, err := h.cases.CreateCase(dbc, middleware.ActorFrom(c), req.Title, req.Description)
	if err != nil {
		respondServiceError(c, "create_case_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"case": created})
}

// GET /api/cases?status=investigating&limit=50&offset=0
func (h *CaseHandler) ListCases(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	list, total, err := h.cases.ListCases(
		dbc,
		middleware.ActorFrom(c),
		cases.CaseStatus(strings.TrimSpace(c.Query("status"))),
		queryInt(c, "limit", 50),
		queryInt(c, "offset", 0),
	)
	if err != nil {
		respondServiceError(c, "list_cases_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"cases": list, "total": total})
}

// GET /api/cases/search?q=timeout&limit=20
func (h *CaseHandler) SearchCases(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	list, total, err := h.cases.SearchCases(
		dbc,
		middleware.ActorFrom(c),
		c.Query("q"),
		queryInt(c, "limit", 20),
	)
	if err != nil {
		respondServiceError(c, "search_cases_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"cases": list, "total": total})
}

// GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	found, err := h.cases.GetCase(dbc, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, "get_case_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": found})
}

type updateCaseReq struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Severity    *string   `json:"severity"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
}

// PATCH /api/cases/:id
func (h *CaseHandler) UpdateCase(c *gin.Context) {
	var req updateCaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.UpdateCaseInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if req.Severity != nil {
		sev := cases.CaseSeverity(*req.Severity)
		in.Severity = &sev
	}
	if req.Category != nil {
		cat := cases.CaseCategory(*req.Category)
		in.Category = &cat
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	updated, err := h.cases.UpdateCase(dbc, middleware.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		respondServiceError(c, "update_case_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": updated})
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// PUT /api/cases/:id/status
func (h *CaseHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	updated, err := h.cases.UpdateStatus(dbc, middleware.ActorFrom(c), c.Param("id"),
		cases.CaseStatus(req.Status), req.Reason)
	if err != nil {
		respondServiceError(c, "update_status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": updated})
}

type closeCaseReq struct {
	Reason string `json:"reason"`
}

// POST /api/cases/:id/close
func (h *CaseHandler) CloseCase(c *gin.Context) {
	var req closeCaseReq
	_ = c.ShouldBindJSON(&req)
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	closed, err := h.cases.CloseCase(dbc, middleware.ActorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		respondServiceError(c, "close_case_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": closed})
}

// DELETE /api/cases/:id
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.cases.DeleteCase(dbc, middleware.ActorFrom(c), c.Param("id")); err != nil {
		respondServiceError(c, "delete_case_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

// POST /api/cases/:id/evidence
func (h *CaseHandler) AddEvidence(c *gin.Context) {
	var e cases.Evidence
	if err := c.ShouldBindJSON(&e); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	updated, err := h.cases.AddEvidence(dbc, middleware.ActorFrom(c), c.Param("id"), e)
	if err != nil {
		respondServiceError(c, "add_evidence_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": updated})
}

// PUT /api/cases/:id/hypotheses
func (h *CaseHandler) UpsertHypothesis(c *gin.Context) {
	var hyp cases.Hypothesis
	if err := c.ShouldBindJSON(&hyp); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	updated, err := h.cases.UpsertHypothesis(dbc, middleware.ActorFrom(c), c.Param("id"), hyp)
	if err != nil {
		respondServiceError(c, "upsert_hypothesis_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": updated})
}

// POST /api/cases/:id/solutions
func (h *CaseHandler) AddSolution(c *gin.Context) {
	var sol cases.Solution
	if err := c.ShouldBindJSON(&sol); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	updated, err := h.cases.AddSolution(dbc, middleware.ActorFrom(c), c.Param("id"), sol)
	if err != nil {
		respondServiceError(c, "add_solution_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"case": updated})
}

type addMessageReq struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// POST /api/cases/:id/messages
func (h *CaseHandler) AddMessage(c *gin.Context) {
	var req addMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	err := h.cases.AddMessage(dbc, middleware.ActorFrom(c), c.Param("id"),
		cases.MessageRole(req.Role), req.Content)
	if err != nil {
		respondServiceError(c, "add_message_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"added": true})
}

// GET /api/cases/:id/messages?limit=50&offset=0
func (h *CaseHandler) GetMessages(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.cases.GetMessages(dbc, middleware.ActorFrom(c), c.Param("id"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondServiceError(c, "get_messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// GET /api/cases/:id/analytics
func (h *CaseHandler) Analytics(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	a, err := h.cases.Analytics(dbc, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, "case_analytics_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"analytics": a})
}
