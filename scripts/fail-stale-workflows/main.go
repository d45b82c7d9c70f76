// fail-stale-workflows marks workflows stuck in started status as failed.
//
// A crashed ETL run can leave its workflow started forever; this sweep moves
// anything started longer than STALE_WORKFLOW_HOURS (default 48) to failed.
// Runs that finish between listing and updating are skipped, because the
// transition goes through the same conditional UPDATE as live writers.
//
// Usage: go run ./scripts/fail-stale-workflows
//
// Database connection: standard DB_* environment variables (see pkg/config).
package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/config"
	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

func main() {
	cfg, err := config.Load("dev")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{URL: cfg.Database.URL()})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	scope, err := db.NewScope(ctx)
	if err != nil {
		logger.Fatal("Failed to acquire connection", zap.Error(err))
	}
	defer scope.Close()
	ctx = database.SetScope(ctx, scope)

	workflowService := services.NewWorkflowService(repositories.NewWorkflowRepository(), logger)

	failed, err := workflowService.FailStale(ctx, time.Duration(cfg.StaleWorkflowHours)*time.Hour)
	if err != nil {
		logger.Fatal("Stale workflow sweep failed", zap.Error(err))
	}
	logger.Info("Swept stale workflows", zap.Int("failed", failed))
}
