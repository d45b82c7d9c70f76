// import-repository-dump registers an external repository dump and runs the
// processing step of the provenance graph: it creates the raw dump entity,
// starts a process_repository_dump workflow consuming it, and on success
// records the processed dump as that workflow's output before completing it.
//
// Usage:
//
//	go run ./scripts/import-repository-dump \
//	    -repository gisaid -pathogen sc2 \
//	    -bucket aspen-dumps -raw-key raw/2026-08-29.tar.zst \
//	    -processed-key processed/2026-08-29.ndjson -sequences 1500000
//
// Database connection: standard DB_* environment variables (see pkg/config).
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/config"
	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

func main() {
	repositoryName := flag.String("repository", "", "public repository name (e.g. gisaid)")
	pathogenSlug := flag.String("pathogen", "", "pathogen slug (e.g. sc2)")
	bucket := flag.String("bucket", "", "S3 bucket holding the dump")
	rawKey := flag.String("raw-key", "", "S3 key of the raw dump")
	processedKey := flag.String("processed-key", "", "S3 key of the processed dump")
	sequences := flag.Int64("sequences", 0, "sequence count in the processed dump")
	flag.Parse()

	if *repositoryName == "" || *pathogenSlug == "" || *bucket == "" || *rawKey == "" || *processedKey == "" {
		flag.Usage()
		log.Fatal("repository, pathogen, bucket, raw-key, and processed-key are required")
	}

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

	entityRepo := repositories.NewEntityRepository()
	pathogenRepo := repositories.NewPathogenRepository()
	workflowService := services.NewWorkflowService(repositories.NewWorkflowRepository(), logger)

	pathogenService := services.NewPathogenService(pathogenRepo)
	_, repository, err := pathogenService.GetPathogenAndRepository(ctx, *pathogenSlug, *repositoryName)
	if err != nil {
		logger.Fatal("Failed to resolve pathogen/repository", zap.Error(err))
	}

	rawDump := &models.Entity{
		Type: models.EntityTypeRawRepositoryDump,
		Payload: models.RepositoryDumpPayload{
			RepositoryID: repository.ID,
			S3Bucket:     *bucket,
			S3Key:        *rawKey,
		},
	}
	if err := entityRepo.Create(ctx, rawDump); err != nil {
		logger.Fatal("Failed to register raw dump", zap.Error(err))
	}
	logger.Info("Registered raw dump", zap.Int64("entity_id", rawDump.ID))

	workflow, err := workflowService.Start(ctx,
		models.WorkflowTypeProcessRepositoryDump,
		[]int64{rawDump.ID},
		map[string]string{"aspen-engine": cfg.Version},
		nil)
	if err != nil {
		logger.Fatal("Failed to start processing workflow", zap.Error(err))
	}

	processedDump := &models.Entity{
		Type:                models.EntityTypeProcessedRepositoryDump,
		ProducingWorkflowID: &workflow.ID,
		Payload: models.RepositoryDumpPayload{
			RepositoryID:  repository.ID,
			S3Bucket:      *bucket,
			S3Key:         *processedKey,
			SequenceCount: *sequences,
		},
	}
	if err := entityRepo.Create(ctx, processedDump); err != nil {
		// Leave the workflow failed rather than dangling in started.
		if failErr := workflowService.Fail(ctx, workflow.ID, time.Now()); failErr != nil {
			logger.Error("Failed to mark workflow failed", zap.Error(failErr))
		}
		logger.Fatal("Failed to register processed dump", zap.Error(err))
	}

	if err := workflowService.Complete(ctx, workflow.ID, time.Now()); err != nil {
		logger.Fatal("Failed to complete workflow", zap.Error(err))
	}

	logger.Info("Imported repository dump",
		zap.Int64("raw_entity_id", rawDump.ID),
		zap.Int64("processed_entity_id", processedDump.ID),
		zap.Int64("workflow_id", workflow.ID))
}
