package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/evalforge/api/internal/domain"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

func createTestExperiment() *domain.Experiment {
	now := time.Now()
	return &domain.Experiment{
		ID:               uuid.New(),
		ProjectID:        uuid.New(),
		Name:             "repository test experiment",
		DatasetVersionID: uuid.New(),
		EvaluatorIDs:     []uuid.UUID{uuid.New()},
		Target:           domain.TargetSpec{Kind: domain.TargetKindNone},
		Status:           domain.RunStatusPending,
		Concurrency:      1,
		Type:             domain.ExperimentTypeOffline,
		RetryMode:        domain.RetryModeFull,
		CreatedBy:        uuid.New(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newTestRun(experimentID uuid.UUID) *domain.ExperimentRun {
	now := time.Now()
	return &domain.ExperimentRun{
		ID:           uuid.New(),
		ExperimentID: experimentID,
		Status:       domain.RunStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestExperimentRepository_CreateRun(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewExperimentRepository(db)

	t.Run("assigns monotonic run numbers", func(t *testing.T) {
		experiment := createTestExperiment()
		require.NoError(t, repo.Create(ctx, experiment))
		defer cleanupExperiments(t, db, experiment.ID)

		first := newTestRun(experiment.ID)
		require.NoError(t, repo.CreateRun(ctx, first))
		assert.Equal(t, 1, first.RunNumber)

		second := newTestRun(experiment.ID)
		require.NoError(t, repo.CreateRun(ctx, second))
		assert.Equal(t, 2, second.RunNumber)

		runs, err := repo.ListRuns(ctx, experiment.ID)
		require.NoError(t, err)
		require.Len(t, runs, 2)
	})

	t.Run("rejects a run for an unknown experiment", func(t *testing.T) {
		run := newTestRun(uuid.New())
		err := repo.CreateRun(ctx, run)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("concurrent creation stays monotonic", func(t *testing.T) {
		experiment := createTestExperiment()
		require.NoError(t, repo.Create(ctx, experiment))
		defer cleanupExperiments(t, db, experiment.ID)

		// Creators serialize on the parent row lock; every number is
		// assigned exactly once.
		const n = 5
		errCh := make(chan error, n)
		for i := 0; i < n; i++ {
			go func() {
				errCh <- repo.CreateRun(ctx, newTestRun(experiment.ID))
			}()
		}
		for i := 0; i < n; i++ {
			require.NoError(t, <-errCh)
		}

		runs, err := repo.ListRuns(ctx, experiment.ID)
		require.NoError(t, err)
		require.Len(t, runs, n)

		seen := make(map[int]bool, n)
		for _, run := range runs {
			assert.False(t, seen[run.RunNumber], "run number assigned twice")
			seen[run.RunNumber] = true
			assert.GreaterOrEqual(t, run.RunNumber, 1)
			assert.LessOrEqual(t, run.RunNumber, n)
		}
	})
}
