package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

// ExperimentRepository handles experiment and run data operations in
// PostgreSQL. Runs and results are owned by their experiment and are
// removed with it (ON DELETE CASCADE on the foreign keys).
type ExperimentRepository struct {
	db *database.PostgresDB
}

// NewExperimentRepository creates a new experiment repository
func NewExperimentRepository(db *database.PostgresDB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// Create creates a new experiment
func (r *ExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	evaluatorIDs, err := json.Marshal(experiment.EvaluatorIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluator_ids: %w", err)
	}
	target, err := json.Marshal(experiment.Target)
	if err != nil {
		return fmt.Errorf("failed to marshal target: %w", err)
	}

	query := `
		INSERT INTO experiments (
			id, project_id, name, description, dataset_version_id, evaluator_ids,
			target, status, progress, concurrency, type, retry_mode,
			created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		experiment.ID,
		experiment.ProjectID,
		experiment.Name,
		experiment.Description,
		experiment.DatasetVersionID,
		evaluatorIDs,
		target,
		string(experiment.Status),
		experiment.Progress,
		experiment.Concurrency,
		string(experiment.Type),
		string(experiment.RetryMode),
		experiment.CreatedBy,
		experiment.CreatedAt,
		experiment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	return nil
}

// GetByID retrieves an experiment by ID
func (r *ExperimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	query := `
		SELECT id, project_id, name, description, dataset_version_id, evaluator_ids,
			target, status, progress, concurrency, type, retry_mode,
			created_by, created_at, updated_at
		FROM experiments
		WHERE id = $1
	`

	var experiment domain.Experiment
	var status, expType, retryMode string
	var evaluatorIDs, target []byte

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&experiment.ID,
		&experiment.ProjectID,
		&experiment.Name,
		&experiment.Description,
		&experiment.DatasetVersionID,
		&evaluatorIDs,
		&target,
		&status,
		&experiment.Progress,
		&experiment.Concurrency,
		&expType,
		&retryMode,
		&experiment.CreatedBy,
		&experiment.CreatedAt,
		&experiment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("experiment")
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	experiment.Status = domain.RunStatus(status)
	experiment.Type = domain.ExperimentType(expType)
	experiment.RetryMode = domain.RetryMode(retryMode)

	if len(evaluatorIDs) > 0 {
		if err := json.Unmarshal(evaluatorIDs, &experiment.EvaluatorIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluator_ids: %w", err)
		}
	}
	if len(target) > 0 {
		if err := json.Unmarshal(target, &experiment.Target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target: %w", err)
		}
	}

	return &experiment, nil
}

// UpdateStatus updates an experiment's status
func (r *ExperimentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE experiments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("experiment")
	}
	return nil
}

// UpdateProgress updates an experiment's status and progress together
func (r *ExperimentRepository) UpdateProgress(ctx context.Context, id uuid.UUID, status domain.RunStatus, progress int) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE experiments SET status = $2, progress = $3, updated_at = $4 WHERE id = $1`,
		id, string(status), progress, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("experiment")
	}
	return nil
}

// Delete deletes an experiment; runs and results cascade
func (r *ExperimentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("experiment")
	}
	return nil
}

// List retrieves experiments with filtering
func (r *ExperimentRepository) List(ctx context.Context, filter *domain.ExperimentFilter, limit, offset int) (*domain.ExperimentList, error) {
	query := `
		SELECT id, project_id, name, description, dataset_version_id, evaluator_ids,
			target, status, progress, concurrency, type, retry_mode,
			created_by, created_at, updated_at
		FROM experiments
		WHERE project_id = $1
	`
	args := []any{filter.ProjectID}
	argPos := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, string(*filter.Type))
		argPos++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS c"
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count experiments: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	list := &domain.ExperimentList{TotalCount: total}
	for rows.Next() {
		var experiment domain.Experiment
		var status, expType, retryMode string
		var evaluatorIDs, target []byte

		if err := rows.Scan(
			&experiment.ID,
			&experiment.ProjectID,
			&experiment.Name,
			&experiment.Description,
			&experiment.DatasetVersionID,
			&evaluatorIDs,
			&target,
			&status,
			&experiment.Progress,
			&experiment.Concurrency,
			&expType,
			&retryMode,
			&experiment.CreatedBy,
			&experiment.CreatedAt,
			&experiment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}

		experiment.Status = domain.RunStatus(status)
		experiment.Type = domain.ExperimentType(expType)
		experiment.RetryMode = domain.RetryMode(retryMode)
		if len(evaluatorIDs) > 0 {
			if err := json.Unmarshal(evaluatorIDs, &experiment.EvaluatorIDs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evaluator_ids: %w", err)
			}
		}
		if len(target) > 0 {
			if err := json.Unmarshal(target, &experiment.Target); err != nil {
				return nil, fmt.Errorf("failed to unmarshal target: %w", err)
			}
		}

		list.Experiments = append(list.Experiments, experiment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiments: %w", err)
	}

	list.HasMore = int64(offset+len(list.Experiments)) < total
	return list, nil
}

// CreateRun inserts a new run, assigning the next run number for the
// experiment inside a transaction so numbers stay monotonic under
// concurrent creation. Postgres rejects FOR UPDATE on aggregate
// queries, so the parent experiment row is locked first and the max is
// read without a locking clause; concurrent creators serialize on the
// parent lock.
func (r *ExperimentRepository) CreateRun(ctx context.Context, run *domain.ExperimentRun) error {
	return database.Transaction(ctx, r.db, func(tx pgx.Tx) error {
		var experimentID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM experiments WHERE id = $1 FOR UPDATE`,
			run.ExperimentID,
		).Scan(&experimentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("experiment")
			}
			return fmt.Errorf("failed to lock experiment for run creation: %w", err)
		}

		err = tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(run_number), 0) + 1 FROM experiment_runs WHERE experiment_id = $1`,
			run.ExperimentID,
		).Scan(&run.RunNumber)
		if err != nil {
			return fmt.Errorf("failed to assign run number: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO experiment_runs (
				id, experiment_id, run_number, status, progress,
				started_at, completed_at, error_message, job_id, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			run.ID,
			run.ExperimentID,
			run.RunNumber,
			string(run.Status),
			run.Progress,
			run.StartedAt,
			run.CompletedAt,
			run.ErrorMessage,
			run.JobID,
			run.CreatedAt,
			run.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		return nil
	})
}

// GetRunByID retrieves a run by ID
func (r *ExperimentRepository) GetRunByID(ctx context.Context, id uuid.UUID) (*domain.ExperimentRun, error) {
	query := `
		SELECT id, experiment_id, run_number, status, progress,
			started_at, completed_at, error_message, job_id, created_at, updated_at
		FROM experiment_runs
		WHERE id = $1
	`

	var run domain.ExperimentRun
	var status string

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.ExperimentID,
		&run.RunNumber,
		&status,
		&run.Progress,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
		&run.JobID,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("experiment run")
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	return &run, nil
}

// UpdateRun updates a run's mutable fields
func (r *ExperimentRepository) UpdateRun(ctx context.Context, run *domain.ExperimentRun) error {
	run.UpdatedAt = time.Now()
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE experiment_runs
		SET status = $2, progress = $3, started_at = $4, completed_at = $5,
			error_message = $6, job_id = $7, updated_at = $8
		WHERE id = $1
	`,
		run.ID,
		string(run.Status),
		run.Progress,
		run.StartedAt,
		run.CompletedAt,
		run.ErrorMessage,
		run.JobID,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("experiment run")
	}
	return nil
}

// ListRuns retrieves all runs of an experiment, newest first
func (r *ExperimentRepository) ListRuns(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, experiment_id, run_number, status, progress,
			started_at, completed_at, error_message, job_id, created_at, updated_at
		FROM experiment_runs
		WHERE experiment_id = $1
		ORDER BY run_number DESC
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ExperimentRun
	for rows.Next() {
		var run domain.ExperimentRun
		var status string
		if err := rows.Scan(
			&run.ID,
			&run.ExperimentID,
			&run.RunNumber,
			&status,
			&run.Progress,
			&run.StartedAt,
			&run.CompletedAt,
			&run.ErrorMessage,
			&run.JobID,
			&run.CreatedAt,
			&run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = domain.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
