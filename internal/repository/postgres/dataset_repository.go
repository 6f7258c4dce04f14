package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

// DatasetRepository handles dataset read operations in PostgreSQL. The
// pipeline is a pure reader of dataset data; writes happen in the
// import subsystem.
type DatasetRepository struct {
	db *database.PostgresDB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *database.PostgresDB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// GetVersion retrieves a dataset version by ID
func (r *DatasetRepository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.DatasetVersion, error) {
	var version domain.DatasetVersion
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, dataset_id, version, item_count, created_at
		FROM dataset_versions
		WHERE id = $1
	`, id).Scan(
		&version.ID,
		&version.DatasetID,
		&version.Version,
		&version.ItemCount,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("dataset version")
		}
		return nil, fmt.Errorf("failed to get dataset version: %w", err)
	}
	return &version, nil
}

// GetVersionItems retrieves all items of a dataset version, fully
// materialized, in stable dataset order
func (r *DatasetRepository) GetVersionItems(ctx context.Context, versionID uuid.UUID) ([]domain.DatasetItem, error) {
	// Reject unknown versions before reading items so callers see
	// NotFound rather than an empty dataset.
	if _, err := r.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, dataset_version_id, turns, created_at
		FROM dataset_items
		WHERE dataset_version_id = $1
		ORDER BY created_at ASC, id ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset items: %w", err)
	}
	defer rows.Close()

	var items []domain.DatasetItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dataset items: %w", err)
	}
	return items, nil
}

// GetItem retrieves a single dataset item by ID
func (r *DatasetRepository) GetItem(ctx context.Context, id uuid.UUID) (*domain.DatasetItem, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, dataset_version_id, turns, created_at
		FROM dataset_items
		WHERE id = $1
	`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("dataset item")
		}
		return nil, err
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.DatasetItem, error) {
	var item domain.DatasetItem
	var turns []byte

	if err := row.Scan(&item.ID, &item.DatasetVersionID, &turns, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dataset item: %w", err)
	}
	if len(turns) > 0 {
		if err := json.Unmarshal(turns, &item.Turns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item turns: %w", err)
		}
	}
	return &item, nil
}
