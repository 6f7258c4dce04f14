package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/aggregation"
	"github.com/evalforge/evalforge/api/internal/domain"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

// JobSubmitter dispatches a run onto the background job mechanism.
// The service is agnostic to the mechanism's retry and visibility
// semantics; it only records the returned handle on the run.
type JobSubmitter interface {
	SubmitRun(ctx context.Context, experimentID, runID uuid.UUID) (string, error)
}

// ExperimentService handles experiment lifecycle and result queries.
// Execution itself belongs to the Executor; this service creates runs,
// dispatches them, and mediates status changes requested from outside.
type ExperimentService struct {
	experiments ExperimentStore
	results     ResultStore
	jobs        JobSubmitter
	stop        StopSignal
	logger      *zap.Logger
}

// NewExperimentService creates a new experiment service
func NewExperimentService(
	experiments ExperimentStore,
	results ResultStore,
	jobs JobSubmitter,
	stop StopSignal,
	logger *zap.Logger,
) *ExperimentService {
	return &ExperimentService{
		experiments: experiments,
		results:     results,
		jobs:        jobs,
		stop:        stop,
		logger:      logger,
	}
}

// Create creates a new experiment in pending state
func (s *ExperimentService) Create(ctx context.Context, projectID, userID uuid.UUID, input *domain.ExperimentInput) (*domain.Experiment, error) {
	datasetVersionID, err := uuid.Parse(input.DatasetVersionID)
	if err != nil {
		return nil, apperrors.Validation("invalid dataset version id")
	}
	evaluatorIDs := make([]uuid.UUID, 0, len(input.EvaluatorIDs))
	for _, raw := range input.EvaluatorIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.Validation("invalid evaluator id: " + raw)
		}
		evaluatorIDs = append(evaluatorIDs, id)
	}

	target := domain.TargetSpec{Kind: domain.TargetKindNone}
	if input.Target != nil {
		target = *input.Target
	}
	if err := target.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	concurrency := 1
	if input.Concurrency != nil {
		concurrency = *input.Concurrency
	}
	experimentType := input.Type
	if experimentType == "" {
		experimentType = domain.ExperimentTypeOffline
	}
	retryMode := input.RetryMode
	if retryMode == "" {
		retryMode = domain.RetryModeFull
	}

	experiment := &domain.Experiment{
		ID:               uuid.New(),
		ProjectID:        projectID,
		Name:             input.Name,
		Description:      input.Description,
		DatasetVersionID: datasetVersionID,
		EvaluatorIDs:     evaluatorIDs,
		Target:           target,
		Status:           domain.RunStatusPending,
		Progress:         0,
		Concurrency:      concurrency,
		Type:             experimentType,
		RetryMode:        retryMode,
		CreatedBy:        userID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.experiments.Create(ctx, experiment); err != nil {
		return nil, err
	}

	s.logger.Info("experiment created",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("name", experiment.Name),
		zap.Int("evaluators", len(evaluatorIDs)),
		zap.String("target_kind", string(target.Kind)),
	)
	return experiment, nil
}

// Get retrieves an experiment by id
func (s *ExperimentService) Get(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	return s.experiments.GetByID(ctx, id)
}

// List lists experiments matching the filter
func (s *ExperimentService) List(ctx context.Context, filter *domain.ExperimentFilter, limit, offset int) (*domain.ExperimentList, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.experiments.List(ctx, filter, limit, offset)
}

// Delete removes an experiment along with its runs and results
func (s *ExperimentService) Delete(ctx context.Context, id uuid.UUID) error {
	experiment, err := s.experiments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if experiment.Status == domain.RunStatusRunning {
		return apperrors.Conflict("cannot delete a running experiment")
	}
	return s.experiments.Delete(ctx, id)
}

// CreateRun creates the next run for an experiment and dispatches it.
// The run starts pending; the executor transitions it once the job is
// picked up.
func (s *ExperimentService) CreateRun(ctx context.Context, experimentID uuid.UUID) (*domain.ExperimentRun, error) {
	experiment, err := s.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if experiment.Status == domain.RunStatusRunning {
		return nil, apperrors.Conflict("experiment already has a running execution")
	}

	run := &domain.ExperimentRun{
		ID:           uuid.New(),
		ExperimentID: experiment.ID,
		Status:       domain.RunStatusPending,
		Progress:     0,
		CreatedAt:    time.Now(),
	}
	if err := s.experiments.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	if err := s.stop.Clear(ctx, experiment.ID, run.ID); err != nil {
		s.logger.Warn("failed to clear stop signal for new run", zap.Error(err))
	}

	jobID, err := s.jobs.SubmitRun(ctx, experiment.ID, run.ID)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = "failed to dispatch run: " + err.Error()
		if uerr := s.experiments.UpdateRun(ctx, run); uerr != nil {
			s.logger.Error("failed to record dispatch failure", zap.Error(uerr))
		}
		return nil, apperrors.Internal("failed to dispatch run").WithError(err)
	}

	run.JobID = jobID
	if err := s.experiments.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	if err := s.experiments.UpdateStatus(ctx, experiment.ID, domain.RunStatusPending); err != nil {
		return nil, err
	}

	s.logger.Info("run created",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("run_number", run.RunNumber),
		zap.String("job_id", jobID),
	)
	return run, nil
}

// UpdateStatus applies an externally requested status change to an
// experiment and, when a run id is given, its run. A stop-like status
// also trips the stop signal so the executor observes it at the next
// item boundary.
func (s *ExperimentService) UpdateStatus(ctx context.Context, experimentID uuid.UUID, input *domain.StatusUpdateInput) error {
	if !input.Status.IsValid() {
		return apperrors.Validation("invalid status: " + string(input.Status))
	}

	experiment, err := s.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return err
	}
	if experiment.Status != input.Status && !experiment.Status.CanTransitionTo(input.Status) {
		return apperrors.Validation(
			"invalid status transition: " + string(experiment.Status) + " -> " + string(input.Status))
	}
	if err := s.experiments.UpdateStatus(ctx, experimentID, input.Status); err != nil {
		return err
	}

	var run *domain.ExperimentRun
	if input.RunID != nil {
		runID, err := uuid.Parse(*input.RunID)
		if err != nil {
			return apperrors.Validation("invalid run id")
		}
		run, err = s.experiments.GetRunByID(ctx, runID)
		if err != nil {
			return err
		}
		if run.ExperimentID != experimentID {
			return apperrors.Validation("run does not belong to experiment")
		}
		run.Status = input.Status
		if input.Status.IsTerminal() {
			now := time.Now()
			run.CompletedAt = &now
		}
		if err := s.experiments.UpdateRun(ctx, run); err != nil {
			return err
		}
	}

	if input.Status.StopRequested() && run != nil {
		if err := s.stop.Trip(ctx, experimentID, run.ID); err != nil {
			s.logger.Error("failed to trip stop signal", zap.Error(err))
		}
	}

	s.logger.Info("status updated",
		zap.String("experiment_id", experimentID.String()),
		zap.String("status", string(input.Status)),
	)
	return nil
}

// GetResults lists per-item results matching the filter, in dataset
// iteration order relative to persistence.
func (s *ExperimentService) GetResults(ctx context.Context, filter *domain.ResultFilter) ([]domain.ExperimentResult, error) {
	return s.results.List(ctx, filter)
}

// ListRuns lists the runs of an experiment
func (s *ExperimentService) ListRuns(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentRun, error) {
	if _, err := s.experiments.GetByID(ctx, experimentID); err != nil {
		return nil, err
	}
	return s.experiments.ListRuns(ctx, experimentID)
}

// CalculateAggregateResults recomputes the per-evaluator summary bundle
// for an experiment from all persisted non-null scores and upserts it,
// superseding any previous computation.
func (s *ExperimentService) CalculateAggregateResults(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentAggregateResult, error) {
	experiment, err := s.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	aggregates := make([]domain.ExperimentAggregateResult, 0, len(experiment.EvaluatorIDs))
	for _, evaluatorID := range experiment.EvaluatorIDs {
		scores, err := s.results.ListScores(ctx, experimentID, evaluatorID)
		if err != nil {
			return nil, err
		}
		stats := aggregation.Aggregate(scores)

		agg := domain.ExperimentAggregateResult{
			ID:           uuid.New(),
			ExperimentID: experimentID,
			EvaluatorID:  evaluatorID,
			Stats:        stats,
			AverageScore: stats.Average,
			UpdatedAt:    time.Now(),
		}
		if err := s.results.UpsertAggregate(ctx, &agg); err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}

	s.logger.Info("aggregate results calculated",
		zap.String("experiment_id", experimentID.String()),
		zap.Int("evaluators", len(aggregates)),
	)
	return aggregates, nil
}

// GetStatistics computes per-evaluator statistics from the currently
// persisted scores, without touching stored aggregates.
func (s *ExperimentService) GetStatistics(ctx context.Context, experimentID uuid.UUID) ([]domain.EvaluatorStatistics, error) {
	experiment, err := s.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.EvaluatorStatistics, 0, len(experiment.EvaluatorIDs))
	for _, evaluatorID := range experiment.EvaluatorIDs {
		scores, err := s.results.ListScores(ctx, experimentID, evaluatorID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, domain.EvaluatorStatistics{
			EvaluatorID: evaluatorID,
			Stats:       aggregation.Aggregate(scores),
		})
	}
	return stats, nil
}
