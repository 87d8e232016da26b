package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/FaultMaven/fm-case-service/internal/http/handlers"
	httpMW "github.com/FaultMaven/fm-case-service/internal/http/middleware"
	"github.com/FaultMaven/fm-case-service/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	CaseHandler   *httpH.CaseHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireIdentity())
	{
		if cfg.CaseHandler != nil {
			api.POST("/cases", cfg.CaseHandler.CreateCase)
			api.GET("/cases", cfg.CaseHandler.ListCases)
			api.GET("/cases/search", cfg.CaseHandler.SearchCases)
			api.GET("/cases/:id", cfg.CaseHandler.GetCase)
			api.PATCH("/cases/:id", cfg.CaseHandler.UpdateCase)
			api.DELETE("/cases/:id", cfg.CaseHandler.DeleteCase)
			api.PUT("/cases/:id/status", cfg.CaseHandler.UpdateStatus)
			api.POST("/cases/:id/close", cfg.CaseHandler.CloseCase)
			api.POST("/cases/:id/evidence", cfg.CaseHandler.AddEvidence)
			api.PUT("/cases/:id/hypotheses", cfg.CaseHandler.UpsertHypothesis)
			api.POST("/cases/:id/solutions", cfg.CaseHandler.AddSolution)
			api.POST("/cases/:id/messages", cfg.CaseHandler.AddMessage)
			api.GET("/cases/:id/messages", cfg.CaseHandler.GetMessages)
			api.GET("/cases/:id/analytics", cfg.CaseHandler.Analytics)
		}
	}

	return r
}
