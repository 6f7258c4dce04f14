package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/api/internal/pkg/database"
)

// StopSignal is the cancellation token checked by the executor at item
// boundaries. Tripping it stops the run after the current item; it is
// never honored mid-item.
type StopSignal interface {
	// Stopped reports whether a stop has been requested for the run.
	Stopped(ctx context.Context, experimentID, runID uuid.UUID) (bool, error)
	// Trip requests a stop for the run.
	Trip(ctx context.Context, experimentID, runID uuid.UUID) error
	// Clear removes a previously tripped signal, used when a run restarts.
	Clear(ctx context.Context, experimentID, runID uuid.UUID) error
}

// stopSignalTTL bounds how long a trip outlives its run. Long enough to
// cover any realistic run, short enough that stale keys expire on their
// own.
const stopSignalTTL = 24 * time.Hour

// RedisStopSignal stores stop requests in Redis so the API process that
// receives the stop and the worker process executing the run agree on
// one source of truth.
type RedisStopSignal struct {
	db *database.RedisDB
}

// NewRedisStopSignal creates a redis-backed stop signal
func NewRedisStopSignal(db *database.RedisDB) *RedisStopSignal {
	return &RedisStopSignal{db: db}
}

func stopKey(experimentID, runID uuid.UUID) string {
	return fmt.Sprintf("experiment:stop:%s:%s", experimentID, runID)
}

// Stopped reports whether the stop key exists
func (s *RedisStopSignal) Stopped(ctx context.Context, experimentID, runID uuid.UUID) (bool, error) {
	n, err := s.db.Exists(ctx, stopKey(experimentID, runID))
	if err != nil {
		return false, fmt.Errorf("failed to check stop signal: %w", err)
	}
	return n > 0, nil
}

// Trip sets the stop key
func (s *RedisStopSignal) Trip(ctx context.Context, experimentID, runID uuid.UUID) error {
	if err := s.db.Set(ctx, stopKey(experimentID, runID), "1", stopSignalTTL); err != nil {
		return fmt.Errorf("failed to set stop signal: %w", err)
	}
	return nil
}

// Clear deletes the stop key
func (s *RedisStopSignal) Clear(ctx context.Context, experimentID, runID uuid.UUID) error {
	if err := s.db.Del(ctx, stopKey(experimentID, runID)); err != nil {
		return fmt.Errorf("failed to clear stop signal: %w", err)
	}
	return nil
}
