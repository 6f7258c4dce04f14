package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
)

// ResultRepository handles per-item results and aggregate summaries in
// PostgreSQL.
type ResultRepository struct {
	db *database.PostgresDB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.PostgresDB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts one experiment result
func (r *ResultRepository) Create(ctx context.Context, result *domain.ExperimentResult) error {
	query := `
		INSERT INTO experiment_results (
			id, experiment_id, run_id, item_id, evaluator_id,
			score, reason, details, actual_output, latency_ms,
			error_message, trace_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		result.ID,
		result.ExperimentID,
		result.RunID,
		result.ItemID,
		result.EvaluatorID,
		result.Score,
		result.Reason,
		result.Details,
		result.ActualOutput,
		result.LatencyMs,
		result.ErrorMessage,
		result.TraceID,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

// List retrieves results matching the filter, in insertion order (which
// follows dataset iteration order within a run)
func (r *ResultRepository) List(ctx context.Context, filter *domain.ResultFilter) ([]domain.ExperimentResult, error) {
	query := `
		SELECT id, experiment_id, run_id, item_id, evaluator_id,
			score, reason, details, actual_output, latency_ms,
			error_message, trace_id, created_at
		FROM experiment_results
		WHERE 1 = 1
	`
	args := []any{}
	argPos := 1

	if filter.ExperimentID != nil {
		query += fmt.Sprintf(" AND experiment_id = $%d", argPos)
		args = append(args, *filter.ExperimentID)
		argPos++
	}
	if filter.RunID != nil {
		query += fmt.Sprintf(" AND run_id = $%d", argPos)
		args = append(args, *filter.RunID)
		argPos++
	}
	if filter.EvaluatorID != nil {
		query += fmt.Sprintf(" AND evaluator_id = $%d", argPos)
		args = append(args, *filter.EvaluatorID)
		argPos++
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []domain.ExperimentResult
	for rows.Next() {
		var result domain.ExperimentResult
		if err := rows.Scan(
			&result.ID,
			&result.ExperimentID,
			&result.RunID,
			&result.ItemID,
			&result.EvaluatorID,
			&result.Score,
			&result.Reason,
			&result.Details,
			&result.ActualOutput,
			&result.LatencyMs,
			&result.ErrorMessage,
			&result.TraceID,
			&result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

// ListScores returns the non-null scores of one evaluator across an
// experiment, used by the aggregation pass
func (r *ResultRepository) ListScores(ctx context.Context, experimentID, evaluatorID uuid.UUID) ([]float64, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT score FROM experiment_results
		WHERE experiment_id = $1 AND evaluator_id = $2 AND score IS NOT NULL
		ORDER BY created_at ASC
	`, experimentID, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return scores, nil
}

// UpsertAggregate writes one per-evaluator summary bundle, superseding
// any previous bundle for the same (experiment, evaluator) pair
func (r *ResultRepository) UpsertAggregate(ctx context.Context, agg *domain.ExperimentAggregateResult) error {
	stats, err := json.Marshal(agg.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate stats: %w", err)
	}

	agg.UpdatedAt = time.Now()
	query := `
		INSERT INTO experiment_aggregate_results (
			id, experiment_id, evaluator_id, stats, average_score, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (experiment_id, evaluator_id)
		DO UPDATE SET stats = EXCLUDED.stats,
			average_score = EXCLUDED.average_score,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.Pool.Exec(ctx, query,
		agg.ID,
		agg.ExperimentID,
		agg.EvaluatorID,
		stats,
		agg.AverageScore,
		agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate result: %w", err)
	}
	return nil
}

// ListAggregates retrieves all aggregate bundles of an experiment
func (r *ResultRepository) ListAggregates(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentAggregateResult, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, experiment_id, evaluator_id, stats, average_score, updated_at
		FROM experiment_aggregate_results
		WHERE experiment_id = $1
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregate results: %w", err)
	}
	defer rows.Close()

	var aggs []domain.ExperimentAggregateResult
	for rows.Next() {
		var agg domain.ExperimentAggregateResult
		var stats []byte
		if err := rows.Scan(
			&agg.ID,
			&agg.ExperimentID,
			&agg.EvaluatorID,
			&stats,
			&agg.AverageScore,
			&agg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate result: %w", err)
		}
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &agg.Stats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal aggregate stats: %w", err)
			}
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate results: %w", err)
	}
	return aggs, nil
}
