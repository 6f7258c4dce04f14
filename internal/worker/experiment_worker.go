package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/service"
)

const (
	// TypeExperimentRun is the task type for executing an experiment run
	TypeExperimentRun = "experiment:run"
	// TypeAggregateResults is the task type for recomputing aggregates
	TypeAggregateResults = "experiment:aggregate"
)

// ExperimentRunPayload is the payload for run execution tasks
type ExperimentRunPayload struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	RunID        uuid.UUID `json:"run_id"`
}

// NewExperimentRunTask creates a run execution task. Retries are
// disabled: a crashed run must be retried explicitly as a new run, not
// replayed by the queue against half-updated state.
func NewExperimentRunTask(payload *ExperimentRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run payload: %w", err)
	}
	return asynq.NewTask(TypeExperimentRun, data, asynq.MaxRetry(0), asynq.Timeout(6*time.Hour)), nil
}

// AggregateResultsPayload is the payload for aggregate recomputation tasks
type AggregateResultsPayload struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
}

// NewAggregateResultsTask creates an aggregate recomputation task
func NewAggregateResultsTask(payload *AggregateResultsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregate payload: %w", err)
	}
	return asynq.NewTask(TypeAggregateResults, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// ExperimentWorker handles experiment run tasks
type ExperimentWorker struct {
	logger            *zap.Logger
	executor          *service.Executor
	experimentService *service.ExperimentService
}

// NewExperimentWorker creates a new experiment worker
func NewExperimentWorker(
	logger *zap.Logger,
	executor *service.Executor,
	experimentService *service.ExperimentService,
) *ExperimentWorker {
	return &ExperimentWorker{
		logger:            logger,
		executor:          executor,
		experimentService: experimentService,
	}
}

// ProcessTask executes one experiment run end to end and recomputes the
// experiment's aggregates afterwards. The executor has already marked
// the run failed before an error reaches this layer; the error is
// returned so the queue records the outcome.
func (w *ExperimentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExperimentRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal run payload: %w", err)
	}

	w.logger.Info("processing experiment run",
		zap.String("experiment_id", payload.ExperimentID.String()),
		zap.String("run_id", payload.RunID.String()),
	)

	if err := w.executor.Execute(ctx, payload.ExperimentID, payload.RunID); err != nil {
		return fmt.Errorf("run execution failed: %w", err)
	}

	if _, err := w.experimentService.CalculateAggregateResults(ctx, payload.ExperimentID); err != nil {
		w.logger.Error("aggregate recomputation after run failed",
			zap.String("experiment_id", payload.ExperimentID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// ProcessAggregateTask recomputes aggregates for one experiment
func (w *ExperimentWorker) ProcessAggregateTask(ctx context.Context, t *asynq.Task) error {
	var payload AggregateResultsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal aggregate payload: %w", err)
	}

	if _, err := w.experimentService.CalculateAggregateResults(ctx, payload.ExperimentID); err != nil {
		return fmt.Errorf("aggregate recomputation failed: %w", err)
	}
	return nil
}
