package main

import (
	"fmt"
	"os"

	"github.com/FaultMaven/fm-case-service/internal/data/db"
	rcases "github.com/FaultMaven/fm-case-service/internal/data/repos/cases"
	httpserver "github.com/FaultMaven/fm-case-service/internal/http"
	httpH "github.com/FaultMaven/fm-case-service/internal/http/handlers"
	"github.com/FaultMaven/fm-case-service/internal/platform/envutil"
	"github.com/FaultMaven/fm-case-service/internal/platform/logger"
	"github.com/FaultMaven/fm-case-service/internal/services"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	backend := envutil.String("CASE_BACKEND", "postgres")
	addr := envutil.String("HTTP_ADDR", ":8080")

	// Repository backend, chosen once at startup.
	var caseRepo rcases.CaseRepository
	switch backend {
	case "memory":
		log.Warn("using in-memory case backend; state is not durable")
		caseRepo = rcases.NewMemoryRepository(log)
	default:
		postgresService, err := db.NewPostgresService(log)
		if err != nil {
			log.Fatal("Postgres init failed", "error", err)
		}
		if err := rcases.Migrate(postgresService.DB()); err != nil {
			log.Fatal("Postgres migration failed", "error", err)
		}
		caseRepo = rcases.NewHybridRepository(postgresService.DB(), log)
	}

	// Services
	caseService := services.NewCaseService(caseRepo, log)

	// HTTP
	srv := httpserver.NewServer(httpserver.RouterConfig{
		Log:           log,
		CaseHandler:   httpH.NewCaseHandler(caseService),
		HealthHandler: httpH.NewHealthHandler(),
	})

	log.Info("case service listening", "addr", addr, "backend", backend)
	if err := srv.Run(addr); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
