package domain

import (
	"time"
)

// Trace is the root observability record for one item's processing.
// A trace row may be materialized lazily by the span store when a span
// is persisted before its root.
type Trace struct {
	ID         string         `json:"id" ch:"id"`
	Name       string         `json:"name" ch:"name"`
	StartTime  time.Time      `json:"startTime" ch:"start_time"`
	EndTime    *time.Time     `json:"endTime,omitempty" ch:"end_time"`
	DurationMs float64        `json:"durationMs" ch:"duration_ms"`
	Attributes map[string]any `json:"attributes,omitempty" ch:"-"`
	CreatedAt  time.Time      `json:"createdAt" ch:"created_at"`

	// Related data (populated by readers)
	Spans []Span `json:"spans,omitempty" ch:"-"`
}

// SpanEvent is one timestamped event recorded on a span
type SpanEvent struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Span is one node of a trace tree. An empty ParentSpanID marks the
// root. Spans relate to their trace by id only and may be persisted
// independently and out of order.
type Span struct {
	TraceID       string         `json:"traceId" ch:"trace_id"`
	SpanID        string         `json:"spanId" ch:"span_id"`
	ParentSpanID  string         `json:"parentSpanId,omitempty" ch:"parent_span_id"`
	Name          string         `json:"name" ch:"name"`
	Kind          SpanKind       `json:"kind" ch:"kind"`
	StartTime     time.Time      `json:"startTime" ch:"start_time"`
	EndTime       time.Time      `json:"endTime" ch:"end_time"`
	DurationMs    float64        `json:"durationMs" ch:"duration_ms"`
	Status        SpanStatus     `json:"status" ch:"status"`
	StatusMessage string         `json:"statusMessage,omitempty" ch:"status_message"`
	Attributes    map[string]any `json:"attributes,omitempty" ch:"-"`
	Events        []SpanEvent    `json:"events,omitempty" ch:"-"`

	finished bool
}

// IsRoot reports whether the span is the root of its trace
func (s *Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

// Finished reports whether End has been called
func (s *Span) Finished() bool {
	return s.finished
}

// SetAttribute records an attribute on the span
func (s *Span) SetAttribute(key string, value any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// AddEvent appends a timestamped event to the span
func (s *Span) AddEvent(name string, attrs map[string]any) {
	s.Events = append(s.Events, SpanEvent{
		Name:       name,
		Time:       time.Now().UTC(),
		Attributes: attrs,
	})
}

// SetError marks the span as failed with the given message
func (s *Span) SetError(message string) {
	s.Status = SpanStatusError
	s.StatusMessage = message
}

// RecordError marks the span as failed from an error value
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.SetError(err.Error())
}

// End finalizes the span in memory: it freezes the end time, computes
// the duration and settles the status (defaulting to ok unless an error
// was recorded). End is idempotent; repeated calls change nothing.
// Persistence is a separate step owned by the tracer.
func (s *Span) End(at ...time.Time) {
	if s.finished {
		return
	}
	s.finished = true

	end := time.Now().UTC()
	if len(at) > 0 && !at[0].IsZero() {
		end = at[0]
	}
	s.EndTime = end
	s.DurationMs = float64(end.Sub(s.StartTime).Microseconds()) / 1000.0

	if s.Status == SpanStatusUnset {
		s.Status = SpanStatusOK
	}
}
