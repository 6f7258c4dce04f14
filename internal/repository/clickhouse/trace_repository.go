package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/database"
)

// TraceRepository handles trace and span persistence in ClickHouse. It
// implements the span store consumed by the tracer: spans may arrive
// out of order, and a span persisted before its trace materializes the
// trace row on the fly.
//
// The spans table is a ReplacingMergeTree keyed (trace_id, span_id), so
// re-persisting a span (e.g. a root written at open and again at
// finish) collapses to one row after merges.
type TraceRepository struct {
	db *database.ClickHouseDB
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *database.ClickHouseDB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Ping checks store health
func (r *TraceRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Reconnect re-establishes the store connection
func (r *TraceRepository) Reconnect(ctx context.Context) error {
	return r.db.Reconnect(ctx)
}

// EnsureTrace creates the trace row if none exists for its id. Safe to
// call repeatedly; an existing row is left untouched so reordered
// writers never produce two rows for one trace.
func (r *TraceRepository) EnsureTrace(ctx context.Context, trace *domain.Trace) error {
	var count uint64
	err := r.db.QueryRow(ctx,
		`SELECT count() FROM traces WHERE id = ?`, trace.ID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check trace existence: %w", err)
	}
	if count > 0 {
		return nil
	}

	attrs, err := marshalAttrs(trace.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal trace attributes: %w", err)
	}

	createdAt := trace.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err = r.db.Exec(ctx, `
		INSERT INTO traces (id, name, start_time, end_time, duration_ms, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		trace.ID,
		trace.Name,
		trace.StartTime,
		trace.EndTime,
		trace.DurationMs,
		attrs,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	return nil
}

// SaveSpan persists one finished span, creating a placeholder trace row
// from the span's own name and start time when the trace does not exist
// yet. A child finished before its root therefore loses no data.
func (r *TraceRepository) SaveSpan(ctx context.Context, span *domain.Span) error {
	if err := r.EnsureTrace(ctx, &domain.Trace{
		ID:        span.TraceID,
		Name:      span.Name,
		StartTime: span.StartTime,
	}); err != nil {
		return err
	}

	attrs, err := marshalAttrs(span.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal span attributes: %w", err)
	}
	events, err := marshalEvents(span.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal span events: %w", err)
	}

	err = r.db.Exec(ctx, `
		INSERT INTO spans (
			trace_id, span_id, parent_span_id, name, kind,
			start_time, end_time, duration_ms, status, status_message,
			attributes, events
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		span.TraceID,
		span.SpanID,
		span.ParentSpanID,
		span.Name,
		string(span.Kind),
		span.StartTime,
		span.EndTime,
		span.DurationMs,
		string(span.Status),
		span.StatusMessage,
		attrs,
		events,
	)
	if err != nil {
		return fmt.Errorf("failed to save span: %w", err)
	}
	return nil
}

// chSpan mirrors the spans table for reads
type chSpan struct {
	TraceID       string    `ch:"trace_id"`
	SpanID        string    `ch:"span_id"`
	ParentSpanID  string    `ch:"parent_span_id"`
	Name          string    `ch:"name"`
	Kind          string    `ch:"kind"`
	StartTime     time.Time `ch:"start_time"`
	EndTime       time.Time `ch:"end_time"`
	DurationMs    float64   `ch:"duration_ms"`
	Status        string    `ch:"status"`
	StatusMessage string    `ch:"status_message"`
	Attributes    string    `ch:"attributes"`
	Events        string    `ch:"events"`
}

// GetTrace retrieves a trace with its spans. Readers must tolerate a
// trace with zero spans: a root's trace row commits before its spans.
func (r *TraceRepository) GetTrace(ctx context.Context, traceID string) (*domain.Trace, error) {
	var trace domain.Trace
	var attrs string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, start_time, end_time, duration_ms, attributes, created_at
		FROM traces
		WHERE id = ?
		LIMIT 1
	`, traceID).Scan(
		&trace.ID,
		&trace.Name,
		&trace.StartTime,
		&trace.EndTime,
		&trace.DurationMs,
		&attrs,
		&trace.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &trace.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace attributes: %w", err)
		}
	}

	spans, err := r.ListSpans(ctx, traceID)
	if err != nil {
		return nil, err
	}
	trace.Spans = spans

	return &trace, nil
}

// ListSpans retrieves the spans of a trace in start order
func (r *TraceRepository) ListSpans(ctx context.Context, traceID string) ([]domain.Span, error) {
	var rows []chSpan
	err := r.db.Select(ctx, &rows, `
		SELECT trace_id, span_id, parent_span_id, name, kind,
			start_time, end_time, duration_ms, status, status_message,
			attributes, events
		FROM spans FINAL
		WHERE trace_id = ?
		ORDER BY start_time ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spans: %w", err)
	}

	spans := make([]domain.Span, 0, len(rows))
	for _, row := range rows {
		span := domain.Span{
			TraceID:       row.TraceID,
			SpanID:        row.SpanID,
			ParentSpanID:  row.ParentSpanID,
			Name:          row.Name,
			Kind:          domain.SpanKind(row.Kind),
			StartTime:     row.StartTime,
			EndTime:       row.EndTime,
			DurationMs:    row.DurationMs,
			Status:        domain.SpanStatus(row.Status),
			StatusMessage: row.StatusMessage,
		}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &span.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal span attributes: %w", err)
			}
		}
		if row.Events != "" {
			if err := json.Unmarshal([]byte(row.Events), &span.Events); err != nil {
				return nil, fmt.Errorf("failed to unmarshal span events: %w", err)
			}
		}
		spans = append(spans, span)
	}
	return spans, nil
}

func marshalAttrs(attrs map[string]any) (string, error) {
	if len(attrs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalEvents(events []domain.SpanEvent) (string, error) {
	if len(events) == 0 {
		return "", nil
	}
	b, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
