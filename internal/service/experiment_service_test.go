package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

type fakeJobSubmitter struct {
	jobID string
	err   error
	calls int
}

func (j *fakeJobSubmitter) SubmitRun(ctx context.Context, experimentID, runID uuid.UUID) (string, error) {
	j.calls++
	if j.err != nil {
		return "", j.err
	}
	return j.jobID, nil
}

type serviceFixture struct {
	store   *fakeExperimentStore
	results *fakeResultStore
	jobs    *fakeJobSubmitter
	stop    *memStopSignal
	svc     *ExperimentService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		store:   newFakeExperimentStore(),
		results: &fakeResultStore{},
		jobs:    &fakeJobSubmitter{jobID: "task-123"},
		stop:    &memStopSignal{},
	}
	f.svc = NewExperimentService(f.store, f.results, f.jobs, f.stop, zap.NewNop())
	return f
}

func (f *serviceFixture) seedExperiment(status domain.RunStatus, evaluatorIDs ...uuid.UUID) *domain.Experiment {
	experiment := &domain.Experiment{
		ID:               uuid.New(),
		ProjectID:        uuid.New(),
		Name:             "seeded",
		DatasetVersionID: uuid.New(),
		EvaluatorIDs:     evaluatorIDs,
		Target:           domain.TargetSpec{Kind: domain.TargetKindNone},
		Status:           status,
	}
	f.store.experiments[experiment.ID] = experiment
	return experiment
}

func validInput() *domain.ExperimentInput {
	return &domain.ExperimentInput{
		Name:             "toxicity sweep",
		DatasetVersionID: uuid.New().String(),
		EvaluatorIDs:     []string{uuid.New().String(), uuid.New().String()},
	}
}

func TestCreateExperiment(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		f := newServiceFixture()
		projectID, userID := uuid.New(), uuid.New()

		experiment, err := f.svc.Create(ctx, projectID, userID, validInput())
		require.NoError(t, err)

		assert.Equal(t, domain.RunStatusPending, experiment.Status)
		assert.Equal(t, 0, experiment.Progress)
		assert.Equal(t, domain.TargetKindNone, experiment.Target.Kind)
		assert.Equal(t, 1, experiment.Concurrency)
		assert.Equal(t, domain.ExperimentTypeOffline, experiment.Type)
		assert.Equal(t, domain.RetryModeFull, experiment.RetryMode)
		assert.Equal(t, projectID, experiment.ProjectID)
		assert.Equal(t, userID, experiment.CreatedBy)
		assert.Len(t, experiment.EvaluatorIDs, 2)
		assert.Contains(t, f.store.experiments, experiment.ID)
	})

	t.Run("rejects malformed dataset version id", func(t *testing.T) {
		f := newServiceFixture()
		input := validInput()
		input.DatasetVersionID = "not-a-uuid"

		_, err := f.svc.Create(ctx, uuid.New(), uuid.New(), input)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects malformed evaluator id", func(t *testing.T) {
		f := newServiceFixture()
		input := validInput()
		input.EvaluatorIDs = []string{"nope"}

		_, err := f.svc.Create(ctx, uuid.New(), uuid.New(), input)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects target spec missing its kind config", func(t *testing.T) {
		f := newServiceFixture()
		input := validInput()
		input.Target = &domain.TargetSpec{Kind: domain.TargetKindAPI}

		_, err := f.svc.Create(ctx, uuid.New(), uuid.New(), input)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches and records job id", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusPending)

		run, err := f.svc.CreateRun(ctx, experiment.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.RunStatusPending, run.Status)
		assert.Equal(t, "task-123", run.JobID)
		assert.Equal(t, 1, f.jobs.calls)
		assert.Contains(t, f.store.runs, run.ID)
	})

	t.Run("clears a stale stop signal", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusStopped)
		f.stop.tripped = true

		_, err := f.svc.CreateRun(ctx, experiment.ID)
		require.NoError(t, err)
		assert.False(t, f.stop.tripped)
	})

	t.Run("rejected while a run is in flight", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)

		_, err := f.svc.CreateRun(ctx, experiment.ID)
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, 0, f.jobs.calls)
	})

	t.Run("dispatch failure marks the run failed", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusPending)
		f.jobs.err = errors.New("queue unavailable")

		_, err := f.svc.CreateRun(ctx, experiment.ID)
		require.Error(t, err)

		require.Len(t, f.store.runs, 1)
		for _, run := range f.store.runs {
			assert.Equal(t, domain.RunStatusFailed, run.Status)
			assert.Contains(t, run.ErrorMessage, "failed to dispatch run")
			assert.Contains(t, run.ErrorMessage, "queue unavailable")
		}
	})

	t.Run("unknown experiment", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.svc.CreateRun(ctx, uuid.New())
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("running to stopped trips the signal", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)
		run := &domain.ExperimentRun{
			ID:           uuid.New(),
			ExperimentID: experiment.ID,
			Status:       domain.RunStatusRunning,
		}
		f.store.runs[run.ID] = run
		runID := run.ID.String()

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{
			Status: domain.RunStatusStopped,
			RunID:  &runID,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.RunStatusStopped, experiment.Status)
		assert.Equal(t, domain.RunStatusStopped, run.Status)
		assert.NotNil(t, run.CompletedAt)
		assert.True(t, f.stop.tripped)
	})

	t.Run("stop without a run id does not trip the signal", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{
			Status: domain.RunStatusStopped,
		})
		require.NoError(t, err)
		assert.False(t, f.stop.tripped)
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{Status: "paused"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects illegal transition", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusCompleted)

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{
			Status: domain.RunStatusRunning,
		})
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, domain.RunStatusCompleted, experiment.Status)
	})

	t.Run("same status is a permitted no-op transition", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{
			Status: domain.RunStatusRunning,
		})
		assert.NoError(t, err)
	})

	t.Run("rejects a run from another experiment", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)
		foreign := &domain.ExperimentRun{
			ID:           uuid.New(),
			ExperimentID: uuid.New(),
			Status:       domain.RunStatusRunning,
		}
		f.store.runs[foreign.ID] = foreign
		runID := foreign.ID.String()

		err := f.svc.UpdateStatus(ctx, experiment.ID, &domain.StatusUpdateInput{
			Status: domain.RunStatusStopped,
			RunID:  &runID,
		})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestDeleteExperiment(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a settled experiment", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusCompleted)

		require.NoError(t, f.svc.Delete(ctx, experiment.ID))
		assert.NotContains(t, f.store.experiments, experiment.ID)
	})

	t.Run("refuses while running", func(t *testing.T) {
		f := newServiceFixture()
		experiment := f.seedExperiment(domain.RunStatusRunning)

		err := f.svc.Delete(ctx, experiment.ID)
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, f.store.experiments, experiment.ID)
	})
}

func TestCalculateAggregateResults(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	evA, evB := uuid.New(), uuid.New()
	experiment := f.seedExperiment(domain.RunStatusCompleted, evA, evB)
	f.results.scores = map[uuid.UUID][]float64{
		evA: {0.4, 0.6, 0.8},
		evB: {1.0},
	}

	aggregates, err := f.svc.CalculateAggregateResults(ctx, experiment.ID)
	require.NoError(t, err)
	require.Len(t, aggregates, 2)
	assert.Len(t, f.results.aggregates, 2)

	byEvaluator := make(map[uuid.UUID]domain.ExperimentAggregateResult)
	for _, agg := range aggregates {
		byEvaluator[agg.EvaluatorID] = agg
	}

	a := byEvaluator[evA]
	assert.Equal(t, 3, a.Stats.Count)
	assert.InDelta(t, 0.6, a.Stats.Average, 1e-9)
	assert.InDelta(t, a.Stats.Average, a.AverageScore, 1e-9)

	b := byEvaluator[evB]
	assert.Equal(t, 1, b.Stats.Count)
	assert.InDelta(t, 1.0, b.AverageScore, 1e-9)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	ev := uuid.New()
	experiment := f.seedExperiment(domain.RunStatusCompleted, ev)
	f.results.scores = map[uuid.UUID][]float64{ev: {0.5, 0.7}}

	stats, err := f.svc.GetStatistics(ctx, experiment.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, ev, stats[0].EvaluatorID)
	assert.Equal(t, 2, stats[0].Stats.Count)
	assert.InDelta(t, 0.6, stats[0].Stats.Average, 1e-9)

	// Live computation only; nothing is written back.
	assert.Empty(t, f.results.aggregates)
}
