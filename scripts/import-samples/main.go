// import-samples registers a batch of samples for a group from a CSV file.
// Rows without a public identifier get one generated in the group's
// namespace ("<repo prefix>/<pathogen slug>/<group prefix>-<serial>/<year>").
//
// CSV columns: private_identifier,public_identifier,private,collection_date,location
// public_identifier may be empty; private is "true"/"false"; collection_date
// is YYYY-MM-DD or empty.
//
// Usage:
//
//	go run ./scripts/import-samples \
//	    -group 1 -pathogen sc2 -repository gisaid -file samples.csv
//
// Database connection: standard DB_* environment variables (see pkg/config).
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/config"
	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

func main() {
	groupID := flag.Int64("group", 0, "submitting group id")
	pathogenSlug := flag.String("pathogen", "", "pathogen slug (e.g. sc2)")
	repositoryName := flag.String("repository", "", "public repository name (e.g. gisaid)")
	file := flag.String("file", "", "CSV file of samples")
	flag.Parse()

	if *groupID == 0 || *pathogenSlug == "" || *repositoryName == "" || *file == "" {
		flag.Usage()
		log.Fatal("group, pathogen, repository, and file are required")
	}

	uploads, err := readUploads(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}
	if len(uploads) == 0 {
		log.Fatalf("No sample rows in %s", *file)
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

	uploadService := services.NewSampleUploadService(
		repositories.NewSampleRepository(),
		repositories.NewGroupRepository(),
		repositories.NewPathogenRepository(),
		logger)

	samples, err := uploadService.Import(ctx, *groupID, *pathogenSlug, *repositoryName, uploads)
	if err != nil {
		logger.Fatal("Import failed",
			zap.Int("imported", len(samples)),
			zap.Error(err))
	}

	logger.Info("Imported samples",
		zap.Int64("group_id", *groupID),
		zap.Int("count", len(samples)))
}

func readUploads(path string) ([]services.SampleUpload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 5

	var uploads []services.SampleUpload
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] == "private_identifier" {
			continue // header
		}

		private, err := strconv.ParseBool(record[2])
		if record[2] != "" && err != nil {
			return nil, err
		}

		upload := services.SampleUpload{
			PrivateIdentifier: record[0],
			PublicIdentifier:  record[1],
			Private:           private,
			Location:          record[4],
		}
		if record[3] != "" {
			collected, err := time.Parse("2006-01-02", record[3])
			if err != nil {
				return nil, err
			}
			upload.CollectionDate = &collected
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}
