package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/service"
)

// Server is the worker server
type Server struct {
	logger *zap.Logger
	config *config.Config
	server *asynq.Server
	mux    *asynq.ServeMux
	client *asynq.Client
}

// Dependencies holds everything workers need
type Dependencies struct {
	Executor          *service.Executor
	ExperimentService *service.ExperimentService
}

// NewServer creates a new worker server
func NewServer(logger *zap.Logger, cfg *config.Config, deps *Dependencies) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	experimentWorker := NewExperimentWorker(logger, deps.Executor, deps.ExperimentService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExperimentRun, experimentWorker.ProcessTask)
	mux.HandleFunc(TypeAggregateResults, experimentWorker.ProcessAggregateTask)

	client := asynq.NewClient(redisOpt)

	return &Server{
		logger: logger,
		config: cfg,
		server: server,
		mux:    mux,
		client: client,
	}, nil
}

// Start starts the worker server and blocks until shutdown
func (s *Server) Start() error {
	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
	)
	return s.server.Run(s.mux)
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
	s.client.Close()
}

// Client returns the asynq client for enqueuing tasks
func (s *Server) Client() *asynq.Client {
	return s.client
}

// asynqLogger adapts zap.Logger to asynq.Logger
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}

// Submitter dispatches run tasks onto the queue. It implements the
// job submission contract consumed by the experiment service.
type Submitter struct {
	client *asynq.Client
}

// NewSubmitter creates a submitter backed by an asynq client
func NewSubmitter(client *asynq.Client) *Submitter {
	return &Submitter{client: client}
}

// SubmitRun enqueues a run execution task and returns the task id as
// the job handle recorded on the run.
func (s *Submitter) SubmitRun(ctx context.Context, experimentID, runID uuid.UUID) (string, error) {
	task, err := NewExperimentRunTask(&ExperimentRunPayload{
		ExperimentID: experimentID,
		RunID:        runID,
	})
	if err != nil {
		return "", err
	}
	info, err := s.client.EnqueueContext(ctx, task, asynq.Queue("default"))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue run task: %w", err)
	}
	return info.ID, nil
}

// SubmitAggregation enqueues an aggregate recomputation task
func (s *Submitter) SubmitAggregation(ctx context.Context, experimentID uuid.UUID) error {
	task, err := NewAggregateResultsTask(&AggregateResultsPayload{ExperimentID: experimentID})
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to enqueue aggregate task: %w", err)
	}
	return nil
}
