package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
)

// getTestDB returns a database connection for integration tests.
// Skips the test when no test database is configured.
func getTestDB(t *testing.T) *database.PostgresDB {
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return nil
	}

	cfg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_TEST_HOST"),
		Port:     5432,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASS"),
		Database: os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}
	if cfg.Database == "" {
		cfg.Database = "test_evalforge"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}

	db, err := database.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}
	return db
}

// cleanupExperiments removes test experiments; runs and results cascade
func cleanupExperiments(t *testing.T, db *database.PostgresDB, ids ...uuid.UUID) {
	ctx := context.Background()
	for _, id := range ids {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM experiments WHERE id = $1", id)
	}
}
