package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// memorySpanStore mimics the lazy-trace-creation contract of the real
// span store, tracking calls for assertions.
type memorySpanStore struct {
	traces map[string]*domain.Trace
	spans  []*domain.Span

	pingErr      error
	reconnectErr error
	saveErr      error

	pings      int
	reconnects int
}

func newMemorySpanStore() *memorySpanStore {
	return &memorySpanStore{traces: make(map[string]*domain.Trace)}
}

func (s *memorySpanStore) SaveSpan(ctx context.Context, span *domain.Span) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.traces[span.TraceID]; !ok {
		s.traces[span.TraceID] = &domain.Trace{
			ID:        span.TraceID,
			Name:      span.Name,
			StartTime: span.StartTime,
		}
	}
	s.spans = append(s.spans, span)
	return nil
}

func (s *memorySpanStore) EnsureTrace(ctx context.Context, trace *domain.Trace) error {
	if _, ok := s.traces[trace.ID]; !ok {
		s.traces[trace.ID] = trace
	}
	return nil
}

func (s *memorySpanStore) Ping(ctx context.Context) error {
	s.pings++
	return s.pingErr
}

func (s *memorySpanStore) Reconnect(ctx context.Context) error {
	s.reconnects++
	if s.reconnectErr != nil {
		return s.reconnectErr
	}
	s.pingErr = nil
	return nil
}

func TestStartSpan(t *testing.T) {
	tracer := NewTracer(newMemorySpanStore(), zap.NewNop())

	t.Run("generates trace id when absent", func(t *testing.T) {
		span := tracer.StartSpan("experiment.item", WithKind(domain.SpanKindItem))

		assert.Len(t, span.TraceID, 32)
		assert.Len(t, span.SpanID, 16)
		assert.True(t, span.IsRoot())
		assert.Equal(t, domain.SpanKindItem, span.Kind)
	})

	t.Run("joins an existing trace under a parent", func(t *testing.T) {
		root := tracer.StartSpan("experiment.item")
		child := tracer.StartSpan("target.invoke",
			WithTraceID(root.TraceID),
			WithParent(root.SpanID),
		)

		assert.Equal(t, root.TraceID, child.TraceID)
		assert.Equal(t, root.SpanID, child.ParentSpanID)
		assert.NotEqual(t, root.SpanID, child.SpanID)
	})

	t.Run("span ids are always fresh", func(t *testing.T) {
		a := tracer.StartSpan("a", WithTraceID("0123456789abcdef0123456789abcdef"))
		b := tracer.StartSpan("b", WithTraceID("0123456789abcdef0123456789abcdef"))
		assert.NotEqual(t, a.SpanID, b.SpanID)
	})
}

func TestFinish(t *testing.T) {
	t.Run("persists the finished span", func(t *testing.T) {
		store := newMemorySpanStore()
		tracer := NewTracer(store, zap.NewNop())

		span := tracer.StartSpan("work")
		tracer.Finish(context.Background(), span)

		assert.True(t, span.Finished())
		require.Len(t, store.spans, 1)
		assert.Equal(t, span.SpanID, store.spans[0].SpanID)
	})

	t.Run("swallows persistence failures", func(t *testing.T) {
		store := newMemorySpanStore()
		store.saveErr = errors.New("clickhouse down")
		tracer := NewTracer(store, zap.NewNop())

		span := tracer.StartSpan("work")
		tracer.Finish(context.Background(), span)

		assert.True(t, span.Finished())
		assert.Empty(t, store.spans)
	})

	t.Run("attempts one recovery when the store is unhealthy", func(t *testing.T) {
		store := newMemorySpanStore()
		store.pingErr = errors.New("connection lost")
		tracer := NewTracer(store, zap.NewNop())

		span := tracer.StartSpan("work")
		tracer.Finish(context.Background(), span)

		assert.Equal(t, 1, store.reconnects)
		require.Len(t, store.spans, 1)
	})

	t.Run("skips the span when recovery fails", func(t *testing.T) {
		store := newMemorySpanStore()
		store.pingErr = errors.New("connection lost")
		store.reconnectErr = errors.New("still down")
		tracer := NewTracer(store, zap.NewNop())

		span := tracer.StartSpan("work")
		tracer.Finish(context.Background(), span)

		assert.Empty(t, store.spans)
	})
}

func TestChildBeforeRoot(t *testing.T) {
	store := newMemorySpanStore()
	tracer := NewTracer(store, zap.NewNop())

	root := tracer.StartSpan("experiment.item")
	child := tracer.StartSpan("evaluator.run",
		WithTraceID(root.TraceID),
		WithParent(root.SpanID),
	)

	// Reordered completion: the child persists first, then the root.
	tracer.Finish(context.Background(), child)
	tracer.Finish(context.Background(), root)

	assert.Len(t, store.spans, 2)
	assert.Len(t, store.traces, 1, "exactly one trace row must survive reordering")
}

func TestMaterializeTrace(t *testing.T) {
	t.Run("creates the trace row for a root span", func(t *testing.T) {
		store := newMemorySpanStore()
		tracer := NewTracer(store, zap.NewNop())

		root := tracer.StartSpan("experiment.item")
		tracer.MaterializeTrace(context.Background(), root)

		require.Contains(t, store.traces, root.TraceID)
		assert.Equal(t, root.Name, store.traces[root.TraceID].Name)
	})

	t.Run("ignores non-root spans", func(t *testing.T) {
		store := newMemorySpanStore()
		tracer := NewTracer(store, zap.NewNop())

		child := tracer.StartSpan("child", WithParent("abcdef0123456789"))
		tracer.MaterializeTrace(context.Background(), child)

		assert.Empty(t, store.traces)
	})
}

func TestWithStartTime(t *testing.T) {
	tracer := NewTracer(newMemorySpanStore(), zap.NewNop())
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	span := tracer.StartSpan("work", WithStartTime(at))
	assert.Equal(t, at, span.StartTime)
}
