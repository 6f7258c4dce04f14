package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// EvaluatorRegistry resolves evaluator identities configured on an
// experiment to their kind and callable version.
type EvaluatorRegistry interface {
	GetEvaluator(ctx context.Context, evaluatorID uuid.UUID) (*domain.Evaluator, error)
}

// EvaluatorClient is the single request/response contract over the
// evaluator subsystem. inputData is a *domain.CodeEvaluatorInput or
// *domain.PromptEvaluatorInput depending on evaluator kind.
type EvaluatorClient interface {
	Run(ctx context.Context, evaluatorVersionID uuid.UUID, inputData any) (*domain.EvaluatorOutput, error)
}

// NormalizeOutput settles the anomalous-but-non-fatal case where an
// evaluator reports neither a score nor an error: the output is kept,
// with a diagnostic reason embedding the raw output so the condition is
// visible in results rather than passing as a silent success.
func NormalizeOutput(out *domain.EvaluatorOutput) *domain.EvaluatorOutput {
	if out == nil {
		return &domain.EvaluatorOutput{
			Reason: "evaluator returned no output",
		}
	}
	if out.Score == nil && out.Error == nil {
		normalized := *out
		normalized.Reason = fmt.Sprintf("evaluator returned no score and no error; raw output: %q", out.Raw)
		return &normalized
	}
	return out
}
