package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/pipeline"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
	"github.com/evalforge/evalforge/api/internal/pkg/logger"
	chrepo "github.com/evalforge/evalforge/api/internal/repository/clickhouse"
	pgrepo "github.com/evalforge/evalforge/api/internal/repository/postgres"
	"github.com/evalforge/evalforge/api/internal/service"
	"github.com/evalforge/evalforge/api/internal/tracing"
	"github.com/evalforge/evalforge/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	log.Info("starting worker service")

	deps, cleanup, err := initWorkerDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	workerServer, err := worker.NewServer(log, cfg, deps)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies initializes dependencies for the worker
func initWorkerDependencies(cfg *config.Config, log *zap.Logger) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		pgDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}

	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		pgDB.Close()
		_ = chDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	experimentRepo := pgrepo.NewExperimentRepository(pgDB)
	resultRepo := pgrepo.NewResultRepository(pgDB)
	datasetRepo := pgrepo.NewDatasetRepository(pgDB)
	evaluatorRepo := pgrepo.NewEvaluatorRepository(pgDB)
	traceRepo := chrepo.NewTraceRepository(chDB)

	tracer := tracing.NewTracer(traceRepo, log)
	stopSignal := service.NewRedisStopSignal(redisDB)

	evalClient := pipeline.NewHTTPEvaluatorClient(cfg.Eval)
	targetInvoker := pipeline.NewHTTPTargetInvoker(cfg.Target)
	targetAdapter := pipeline.NewTargetAdapter(targetInvoker, log)

	executor := service.NewExecutor(
		experimentRepo,
		datasetRepo,
		resultRepo,
		evaluatorRepo,
		evalClient,
		targetAdapter,
		tracer,
		stopSignal,
		log,
	)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	experimentService := service.NewExperimentService(
		experimentRepo,
		resultRepo,
		worker.NewSubmitter(asynqClient),
		stopSignal,
		log,
	)

	deps := &worker.Dependencies{
		Executor:          executor,
		ExperimentService: experimentService,
	}

	cleanup := func() {
		pgDB.Close()
		_ = chDB.Close()
		_ = redisDB.Close()
		_ = asynqClient.Close()
	}

	return deps, cleanup, nil
}
