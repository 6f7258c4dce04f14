package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/handler"
	"github.com/evalforge/evalforge/api/internal/pipeline"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
	chrepo "github.com/evalforge/evalforge/api/internal/repository/clickhouse"
	pgrepo "github.com/evalforge/evalforge/api/internal/repository/postgres"
	"github.com/evalforge/evalforge/api/internal/service"
	"github.com/evalforge/evalforge/api/internal/tracing"
	"github.com/evalforge/evalforge/api/internal/worker"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres   *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB

	ExperimentRepo *pgrepo.ExperimentRepository
	ResultRepo     *pgrepo.ResultRepository
	DatasetRepo    *pgrepo.DatasetRepository
	EvaluatorRepo  *pgrepo.EvaluatorRepository
	TraceRepo      *chrepo.TraceRepository

	Tracer            *tracing.Tracer
	StopSignal        *service.RedisStopSignal
	Executor          *service.Executor
	ExperimentService *service.ExperimentService

	HealthHandler     *handler.HealthHandler
	ExperimentHandler *handler.ExperimentHandler
	TraceHandler      *handler.TraceHandler
	DatasetHandler    *handler.DatasetHandler

	AsynqClient *asynq.Client
}

// initDependencies initializes all dependencies
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.Background()

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	deps.Postgres = pgDB

	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	deps.ClickHouse = chDB

	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	deps.Redis = redisDB

	deps.ExperimentRepo = pgrepo.NewExperimentRepository(pgDB)
	deps.ResultRepo = pgrepo.NewResultRepository(pgDB)
	deps.DatasetRepo = pgrepo.NewDatasetRepository(pgDB)
	deps.EvaluatorRepo = pgrepo.NewEvaluatorRepository(pgDB)
	deps.TraceRepo = chrepo.NewTraceRepository(chDB)

	deps.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	deps.Tracer = tracing.NewTracer(deps.TraceRepo, logger)
	deps.StopSignal = service.NewRedisStopSignal(redisDB)

	evalClient := pipeline.NewHTTPEvaluatorClient(cfg.Eval)
	targetInvoker := pipeline.NewHTTPTargetInvoker(cfg.Target)
	targetAdapter := pipeline.NewTargetAdapter(targetInvoker, logger)

	deps.Executor = service.NewExecutor(
		deps.ExperimentRepo,
		deps.DatasetRepo,
		deps.ResultRepo,
		deps.EvaluatorRepo,
		evalClient,
		targetAdapter,
		deps.Tracer,
		deps.StopSignal,
		logger,
	)

	deps.ExperimentService = service.NewExperimentService(
		deps.ExperimentRepo,
		deps.ResultRepo,
		worker.NewSubmitter(deps.AsynqClient),
		deps.StopSignal,
		logger,
	)

	deps.HealthHandler = handler.NewHealthHandler(pgDB, chDB, redisDB, appVersion)
	deps.ExperimentHandler = handler.NewExperimentHandler(logger, deps.ExperimentService)
	deps.TraceHandler = handler.NewTraceHandler(logger, deps.TraceRepo)
	deps.DatasetHandler = handler.NewDatasetHandler(logger, deps.DatasetRepo)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.AsynqClient != nil {
		_ = d.AsynqClient.Close()
	}
}
