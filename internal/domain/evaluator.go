package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evaluator identifies a scoring function registered with the evaluator
// subsystem. The subsystem itself (prompt rendering, code sandboxing) is
// an external collaborator; the pipeline only needs identity and kind.
type Evaluator struct {
	ID        uuid.UUID     `json:"id"`
	ProjectID uuid.UUID     `json:"projectId"`
	Name      string        `json:"name"`
	Kind      EvaluatorKind `json:"kind"`
	VersionID uuid.UUID     `json:"versionId"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// EvaluatorUsage holds token accounting reported by an evaluator call
type EvaluatorUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// EvaluatorError is an evaluator-local failure, recorded rather than raised
type EvaluatorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EvaluatorOutput is the single response contract of the evaluator
// subsystem. A present Error means the evaluator itself failed. A nil
// Score with a nil Error is anomalous output and is recorded with a
// diagnostic reason, never raised.
type EvaluatorOutput struct {
	Score  *float64        `json:"score"`
	Reason string          `json:"reason"`
	Raw    string          `json:"raw,omitempty"`
	Usage  EvaluatorUsage  `json:"usage"`
	Error  *EvaluatorError `json:"error,omitempty"`
}

// CodeEvaluatorInput is the input shape for code evaluators: dataset
// fields and target output are kept as two disjoint mappings.
type CodeEvaluatorInput struct {
	DatasetFields      map[string]string `json:"datasetFields"`
	TargetOutputFields map[string]string `json:"targetOutputFields"`
}

// PromptEvaluatorInput is the input shape for prompt evaluators: one
// merged mapping with target fields winning on key collision.
type PromptEvaluatorInput struct {
	InputFields map[string]string `json:"inputFields"`
}
