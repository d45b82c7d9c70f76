package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/auth"
	"github.com/aspen-bio/aspen-engine/pkg/config"
	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/handlers"
	"github.com/aspen-bio/aspen-engine/pkg/middleware"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatalf("Invalid auth config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Run migrations over a short-lived database/sql connection.
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	entityRepo := repositories.NewEntityRepository()
	workflowRepo := repositories.NewWorkflowRepository()
	sampleRepo := repositories.NewSampleRepository()
	groupRepo := repositories.NewGroupRepository()
	userRepo := repositories.NewUserRepository()
	pathogenRepo := repositories.NewPathogenRepository()

	// Services
	userService := services.NewUserService(userRepo, logger)
	provenanceService := services.NewProvenanceService(entityRepo, logger)
	accessService := services.NewSampleAccessService(sampleRepo, groupRepo, logger)
	reconcileService := services.NewReconcileService(pathogenRepo)
	pathogenService := services.NewPathogenService(pathogenRepo)
	phyloService := services.NewPhyloService(workflowRepo, groupRepo, provenanceService, logger)

	lineageService := services.NewLineageService()
	if cfg.Lineage.AliasesPath != "" {
		lineageService, err = services.NewLineageServiceFromFile(cfg.Lineage.AliasesPath)
		if err != nil {
			logger.Fatal("Failed to load lineage aliases", zap.Error(err))
		}
	}

	// Auth
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Issuer:             cfg.Auth.Issuer,
		JWKSURL:            cfg.Auth.JWKSURL,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, userService, logger)
	scopeMiddleware := database.WithRequestScope(db, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	samplesHandler := handlers.NewSamplesHandler(accessService, reconcileService, pathogenService, logger)
	samplesHandler.RegisterRoutes(mux, authMiddleware.RequireAuth, scopeMiddleware)

	phyloHandler := handlers.NewPhyloHandler(phyloService, logger)
	phyloHandler.RegisterRoutes(mux, authMiddleware.RequireAuth, scopeMiddleware)

	lineagesHandler := handlers.NewLineagesHandler(lineageService, pathogenService, logger)
	lineagesHandler.RegisterRoutes(mux, authMiddleware.RequireAuth, scopeMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting aspen-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
