package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpanEnd(t *testing.T) {
	t.Run("computes duration and defaults status to ok", func(t *testing.T) {
		start := time.Now().UTC()
		span := &Span{
			TraceID:   "abc",
			SpanID:    "def",
			Name:      "work",
			StartTime: start,
		}

		span.End(start.Add(250 * time.Millisecond))

		assert.True(t, span.Finished())
		assert.Equal(t, SpanStatusOK, span.Status)
		assert.InDelta(t, 250.0, span.DurationMs, 0.001)
	})

	t.Run("is idempotent", func(t *testing.T) {
		start := time.Now().UTC()
		span := &Span{StartTime: start}

		span.End(start.Add(100 * time.Millisecond))
		firstEnd := span.EndTime
		firstDuration := span.DurationMs

		span.End(start.Add(5 * time.Second))

		assert.Equal(t, firstEnd, span.EndTime)
		assert.Equal(t, firstDuration, span.DurationMs)
	})

	t.Run("preserves recorded error status", func(t *testing.T) {
		span := &Span{StartTime: time.Now().UTC()}
		span.SetError("boom")

		span.End()

		assert.Equal(t, SpanStatusError, span.Status)
		assert.Equal(t, "boom", span.StatusMessage)
	})
}

func TestSpanRecordError(t *testing.T) {
	span := &Span{StartTime: time.Now().UTC()}

	span.RecordError(nil)
	assert.Equal(t, SpanStatusUnset, span.Status)

	span.RecordError(errors.New("broken"))
	assert.Equal(t, SpanStatusError, span.Status)
	assert.Equal(t, "broken", span.StatusMessage)
}

func TestSpanIsRoot(t *testing.T) {
	assert.True(t, (&Span{}).IsRoot())
	assert.False(t, (&Span{ParentSpanID: "parent"}).IsRoot())
}

func TestSpanAttributesAndEvents(t *testing.T) {
	span := &Span{StartTime: time.Now().UTC()}

	span.SetAttribute("item_id", "x")
	span.AddEvent("retry", map[string]any{"attempt": 2})

	assert.Equal(t, "x", span.Attributes["item_id"])
	assert.Len(t, span.Events, 1)
	assert.Equal(t, "retry", span.Events[0].Name)
}
