package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

// EvaluatorRepository resolves evaluator identities in PostgreSQL. The
// pipeline only reads identity and kind; evaluator authoring lives in
// the evaluator subsystem.
type EvaluatorRepository struct {
	db *database.PostgresDB
}

// NewEvaluatorRepository creates a new evaluator repository
func NewEvaluatorRepository(db *database.PostgresDB) *EvaluatorRepository {
	return &EvaluatorRepository{db: db}
}

// GetEvaluator retrieves an evaluator by ID
func (r *EvaluatorRepository) GetEvaluator(ctx context.Context, id uuid.UUID) (*domain.Evaluator, error) {
	var eval domain.Evaluator
	var kind string

	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, project_id, name, kind, version_id, enabled, created_at, updated_at
		FROM evaluators
		WHERE id = $1
	`, id).Scan(
		&eval.ID,
		&eval.ProjectID,
		&eval.Name,
		&kind,
		&eval.VersionID,
		&eval.Enabled,
		&eval.CreatedAt,
		&eval.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("evaluator")
		}
		return nil, fmt.Errorf("failed to get evaluator: %w", err)
	}

	eval.Kind = domain.EvaluatorKind(kind)
	return &eval, nil
}
