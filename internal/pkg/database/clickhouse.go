package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/config"
	"github.com/evalforge/evalforge/api/internal/pkg/logger"
)

// ClickHouseDB wraps a ClickHouse connection. It can re-establish its
// connection on demand, so span persistence can recover from a dropped
// connection without restarting the worker.
type ClickHouseDB struct {
	mu   sync.RWMutex
	conn driver.Conn
	opts *clickhouse.Options
}

// NewClickHouse creates a new ClickHouse connection
func NewClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseDB, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     25,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{conn: conn, opts: opts}, nil
}

// Close closes the connection
func (db *ClickHouseDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping checks connectivity
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	db.mu.RLock()
	conn := db.conn
	db.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("clickhouse connection is not open")
	}
	return conn.Ping(ctx)
}

// Reconnect drops the current connection and opens a fresh one
func (db *ClickHouseDB) Reconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		_ = db.conn.Close()
	}

	conn, err := clickhouse.Open(db.opts)
	if err != nil {
		return fmt.Errorf("failed to reopen clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping clickhouse after reconnect: %w", err)
	}

	db.conn = conn
	logger.Warn("clickhouse connection re-established")
	return nil
}

// Exec executes a query
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Exec(ctx, query, args...)
}

// Select executes a select query and scans results into dest
func (db *ClickHouseDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Select(ctx, dest, query, args...)
}

// QueryRow executes a query that returns a single row
func (db *ClickHouseDB) QueryRow(ctx context.Context, query string, args ...interface{}) driver.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(ctx, query, args...)
}

// PrepareBatch prepares a batch insert
func (db *ClickHouseDB) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.PrepareBatch(ctx, query)
}
