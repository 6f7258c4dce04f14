package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/pkg/id"
)

// SpanStore persists finished spans. SaveSpan must create the trace row
// on the fly when none exists for the span's trace id, so a child span
// may be persisted before its root without data loss.
type SpanStore interface {
	SaveSpan(ctx context.Context, span *domain.Span) error
	EnsureTrace(ctx context.Context, trace *domain.Trace) error
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// Tracer opens spans and finalizes them. Opening assigns trace/span
// identity and parent linkage; finishing delegates persistence to the
// span store and never lets a persistence failure reach the caller.
type Tracer struct {
	store  SpanStore
	logger *zap.Logger
}

// NewTracer creates a tracer backed by the given span store
func NewTracer(store SpanStore, logger *zap.Logger) *Tracer {
	return &Tracer{store: store, logger: logger}
}

// SpanOption configures a span at start time
type SpanOption func(*domain.Span)

// WithTraceID places the span in an existing trace
func WithTraceID(traceID string) SpanOption {
	return func(s *domain.Span) {
		if traceID != "" {
			s.TraceID = traceID
		}
	}
}

// WithParent links the span under a parent span
func WithParent(parentSpanID string) SpanOption {
	return func(s *domain.Span) { s.ParentSpanID = parentSpanID }
}

// WithKind sets the span kind
func WithKind(kind domain.SpanKind) SpanOption {
	return func(s *domain.Span) { s.Kind = kind }
}

// WithAttributes seeds the span's attribute bag
func WithAttributes(attrs map[string]any) SpanOption {
	return func(s *domain.Span) {
		for k, v := range attrs {
			s.SetAttribute(k, v)
		}
	}
}

// WithStartTime overrides the span start time
func WithStartTime(t time.Time) SpanOption {
	return func(s *domain.Span) {
		if !t.IsZero() {
			s.StartTime = t
		}
	}
}

// StartSpan opens a new span. A trace id is generated when none is
// supplied; the span id is always fresh.
func (t *Tracer) StartSpan(name string, opts ...SpanOption) *domain.Span {
	span := &domain.Span{
		SpanID:    id.NewSpanID(),
		Name:      name,
		Kind:      domain.SpanKindInternal,
		StartTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(span)
	}
	if span.TraceID == "" {
		span.TraceID = id.NewTraceID()
	}
	return span
}

// MaterializeTrace eagerly creates the trace row for a root span, so
// the trace exists before any child span persistence is attempted.
// Like all tracing persistence, failures are logged and swallowed.
func (t *Tracer) MaterializeTrace(ctx context.Context, root *domain.Span) {
	if t.store == nil || !root.IsRoot() {
		return
	}
	trace := &domain.Trace{
		ID:        root.TraceID,
		Name:      root.Name,
		StartTime: root.StartTime,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.store.EnsureTrace(ctx, trace); err != nil {
		t.logger.Warn("trace materialization skipped",
			zap.String("trace_id", root.TraceID),
			zap.Error(err),
		)
	}
}

// Finish ends the span and persists it. Persistence errors are logged
// and swallowed: tracing must never fail the operation it observes.
func (t *Tracer) Finish(ctx context.Context, span *domain.Span) {
	span.End()

	if t.store == nil {
		return
	}
	if err := t.Persist(ctx, span); err != nil {
		t.logger.Warn("span persistence skipped",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.Error(err),
		)
	}
}

// Persist writes a finished span to the store. The store is health
// checked first; on failure one recovery attempt is made before the
// write. Kept separate from Finish so the side effect is testable
// independently of timing.
func (t *Tracer) Persist(ctx context.Context, span *domain.Span) error {
	if !span.Finished() {
		span.End()
	}

	if err := t.store.Ping(ctx); err != nil {
		t.logger.Warn("span store unhealthy, attempting recovery", zap.Error(err))
		if err := t.store.Reconnect(ctx); err != nil {
			return err
		}
	}

	return t.store.SaveSpan(ctx, span)
}
