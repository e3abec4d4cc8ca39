package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/db"
	"github.com/tracevine/tracevine-backend/internal/drift"
	"github.com/tracevine/tracevine-backend/internal/gap"
	"github.com/tracevine/tracevine-backend/internal/ingest/embedder"
	"github.com/tracevine/tracevine-backend/internal/ingest/fetcher"
	"github.com/tracevine/tracevine-backend/internal/ingest/parser"
	"github.com/tracevine/tracevine-backend/internal/jobs"
	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/jobs/worker"
	"github.com/tracevine/tracevine-backend/internal/match"
	"github.com/tracevine/tracevine-backend/internal/observability"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/platform/blob"
	"github.com/tracevine/tracevine-backend/internal/platform/gitsource"
	"github.com/tracevine/tracevine-backend/internal/platform/inference"
	"github.com/tracevine/tracevine-backend/internal/platform/vectorindex"
	"github.com/tracevine/tracevine-backend/internal/realtime"
	"github.com/tracevine/tracevine-backend/internal/report"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/requirements"
	"github.com/tracevine/tracevine-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"), log)
	if err != nil {
		log.Error("Config load failed", "error", err)
		os.Exit(1)
	}
	if watchErr := cfg.Watch(ctx); watchErr != nil {
		log.Warn("Config watch unavailable", "error", watchErr)
	}

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "tracevine-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	defer func() { _ = shutdownOtel(context.Background()) }()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = db.AutoMigrateAll(postgresService.DB()); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	repositoryRepo := repos.NewRepositoryRepo(gdb, log)
	fileBlobRepo := repos.NewFileBlobRepo(gdb, log)
	codeNodeRepo := repos.NewCodeNodeRepo(gdb, log)
	embeddingRepo := repos.NewEmbeddingRepo(gdb, log)
	requirementRepo := repos.NewRequirementRepo(gdb, log)
	matchRepo := repos.NewRequirementMatchRepo(gdb, log)
	driftRepo := repos.NewDriftRecordRepo(gdb, log)
	gapRepo := repos.NewGapRecordRepo(gdb, log)
	jobRunRepo := repos.NewJobRunRepo(gdb, log)

	// Platform adapters
	log.Info("Setting up platform adapters...")
	blobStore, err := blob.NewGCSStore(ctx, log)
	if err != nil {
		log.Error("Blob store init failed", "error", err)
		os.Exit(1)
	}
	aiClient, err := inference.NewFromEnv()
	if err != nil {
		log.Error("Inference client init failed", "error", err)
		os.Exit(1)
	}
	vecClient, err := vectorindex.NewHTTPClient()
	if err != nil {
		log.Error("Vector index client init failed", "error", err)
		os.Exit(1)
	}
	vecStore, err := vectorindex.NewStore(log, vecClient)
	if err != nil {
		log.Error("Vector store init failed", "error", err)
		os.Exit(1)
	}
	var bus realtime.Bus
	bus, err = realtime.NewRedisBus(log)
	if err != nil {
		log.Warn("Redis unavailable, progress events disabled", "error", err)
		bus = realtime.NopBus{}
	}
	defer bus.Close()

	gitProvider := gitsource.NewGitCLI()
	var diffAPI gitsource.DiffAPI
	if os.Getenv("GITHUB_TOKEN") != "" {
		diffAPI = gitsource.NewGitHubDiffAPI(nil)
	}

	// Job queue
	queue := jobs.NewQueue(gdb, jobRunRepo, cfg.Current().Pipeline.MaxAttempts)

	// Grammar table, fixed at startup
	grammars := parser.NewRegistry()
	parser.RegisterGrammars(grammars)

	// Stage handlers
	registry := runtime.NewRegistry()
	mustRegister(log, registry, fetcher.New(gdb, log, cfg, gitProvider, diffAPI, blobStore, vecStore, fileBlobRepo, codeNodeRepo, embeddingRepo, repositoryRepo, queue))
	mustRegister(log, registry, parser.New(gdb, log, cfg, grammars, blobStore, vecStore, codeNodeRepo, embeddingRepo, repositoryRepo, queue))
	mustRegister(log, registry, embedder.New(gdb, log, aiClient, vecStore, embeddingRepo, codeNodeRepo))

	// Engines
	reqService := requirements.NewService(gdb, log, aiClient, requirementRepo)
	matchEngine := match.NewEngine(gdb, log, cfg, aiClient, vecStore, requirementRepo, matchRepo, codeNodeRepo, embeddingRepo)
	driftDetector := drift.NewDetector(gdb, log, cfg, aiClient, requirementRepo, matchRepo, codeNodeRepo, embeddingRepo, driftRepo)
	gapAnalyzer := gap.NewAnalyzer(gdb, log, cfg, requirementRepo, matchRepo, gapRepo)
	reporter := report.NewReporter(gdb, log, cfg, requirementRepo, matchRepo, codeNodeRepo)

	svc := services.New(gdb, log, cfg, queue, repositoryRepo, reqService, matchEngine, driftDetector, gapAnalyzer, reporter)

	// Workers
	w := worker.NewWorker(gdb, log, cfg, jobRunRepo, registry, bus)
	w.Start(ctx)
	log.Info("Pipeline workers started")

	// Mirror progress events into the process log until a delivery surface
	// subscribes.
	if err := bus.StartForwarder(ctx, func(ev realtime.ProgressEvent) {
		log.Debug("Progress", "job_type", ev.JobType, "kind", ev.Kind, "message", ev.Message)
	}); err != nil {
		log.Warn("Progress forwarder failed to start", "error", err)
	}

	if repoList, listErr := svc.ListRepositories(ctx); listErr == nil {
		log.Info("Tracking repositories", "count", len(repoList))
	}

	<-ctx.Done()
	log.Info("Shutting down")
}

func mustRegister(log *logger.Logger, registry *runtime.Registry, h runtime.Handler) {
	if err := registry.Register(h); err != nil {
		log.Error("Handler registration failed", "job_type", h.Type(), "error", err)
		os.Exit(1)
	}
}
