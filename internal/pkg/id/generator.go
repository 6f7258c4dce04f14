package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// TraceIDBytes is the byte length of a W3C-compliant trace ID (32 hex chars)
const TraceIDBytes = 16

// SpanIDBytes is the byte length of a W3C-compliant span ID (16 hex chars)
const SpanIDBytes = 8

// NewTraceID generates a new W3C-compliant trace ID (32 hex characters)
func NewTraceID() string {
	buf := make([]byte, TraceIDBytes)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to time-based ID if random fails
		return fmt.Sprintf("%016x%016x", time.Now().UnixNano(), time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// NewSpanID generates a new W3C-compliant span ID (16 hex characters)
func NewSpanID() string {
	buf := make([]byte, SpanIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// ValidTraceID reports whether id is a well-formed trace ID
func ValidTraceID(traceID string) bool {
	if len(traceID) != 2*TraceIDBytes {
		return false
	}
	_, err := hex.DecodeString(traceID)
	return err == nil
}

// ValidSpanID reports whether id is a well-formed span ID
func ValidSpanID(spanID string) bool {
	if len(spanID) != 2*SpanIDBytes {
		return false
	}
	_, err := hex.DecodeString(spanID)
	return err == nil
}
