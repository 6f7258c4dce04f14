package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentResult is one (item x evaluator) outcome within a run.
// A retry creates new rows under a new run; rows are never mutated.
type ExperimentResult struct {
	ID           uuid.UUID `json:"id"`
	ExperimentID uuid.UUID `json:"experimentId"`
	RunID        uuid.UUID `json:"runId"`
	ItemID       uuid.UUID `json:"itemId"`
	EvaluatorID  uuid.UUID `json:"evaluatorId"`
	Score        *float64  `json:"score"`
	Reason       string    `json:"reason,omitempty"`
	Details      string    `json:"details,omitempty"` // JSON blob
	ActualOutput string    `json:"actualOutput,omitempty"`
	LatencyMs    float64   `json:"latencyMs"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	TraceID      string    `json:"traceId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DistributionBin is one fixed bin of a score distribution
type DistributionBin struct {
	Range      string  `json:"range"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AggregateStats is the statistical summary of a score list
type AggregateStats struct {
	Count        int               `json:"count"`
	Average      float64           `json:"average"`
	Sum          float64           `json:"sum"`
	Max          float64           `json:"max"`
	Min          float64           `json:"min"`
	Distribution []DistributionBin `json:"distribution"`
}

// ExperimentAggregateResult is the per-(experiment x evaluator) summary
// bundle. Recomputation supersedes the previous row rather than
// appending a new one.
type ExperimentAggregateResult struct {
	ID           uuid.UUID      `json:"id"`
	ExperimentID uuid.UUID      `json:"experimentId"`
	EvaluatorID  uuid.UUID      `json:"evaluatorId"`
	Stats        AggregateStats `json:"stats"`
	AverageScore float64        `json:"averageScore"` // denormalized from Stats.Average
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ResultFilter represents filter options for querying results
type ResultFilter struct {
	ExperimentID *uuid.UUID
	RunID        *uuid.UUID
	EvaluatorID  *uuid.UUID
}

// EvaluatorStatistics is the per-evaluator stat bundle exposed to the UI
type EvaluatorStatistics struct {
	EvaluatorID uuid.UUID      `json:"evaluatorId"`
	Stats       AggregateStats `json:"stats"`
}
