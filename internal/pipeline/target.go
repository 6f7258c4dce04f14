package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// TargetInvoker performs the external call for configured targets.
// Implementations cover api/model/prompt kinds; the none kind never
// reaches the invoker.
type TargetInvoker interface {
	Invoke(ctx context.Context, spec domain.TargetSpec, inputFields map[string]string) (string, error)
}

// TargetAdapter is the single request/response contract over the
// pluggable target subsystem.
type TargetAdapter struct {
	invoker TargetInvoker
	logger  *zap.Logger
}

// NewTargetAdapter creates a target adapter
func NewTargetAdapter(invoker TargetInvoker, logger *zap.Logger) *TargetAdapter {
	return &TargetAdapter{invoker: invoker, logger: logger}
}

// noneKindPriority is the field preference order when no target is
// configured and the item's own data is judged directly.
var noneKindPriority = []string{FieldOutput, FieldAnswer, FieldReferenceOutput}

// Invoke produces the output text to be judged. For the none kind the
// output comes from the item's own fields, first present wins, with no
// external call. For configured kinds the call is delegated; a failure
// returns a synthesized, legible output string along with the raw error
// so the caller can decide whether to short-circuit evaluation.
func (a *TargetAdapter) Invoke(ctx context.Context, spec domain.TargetSpec, inputFields map[string]string, item *domain.DatasetItem) (string, error) {
	switch spec.Kind {
	case domain.TargetKindNone, "":
		for _, name := range noneKindPriority {
			if v, ok := inputFields[name]; ok && v != "" {
				return v, nil
			}
			if item != nil {
				if v := item.Field(name); v != "" {
					return v, nil
				}
			}
		}
		return "", nil

	case domain.TargetKindAPI, domain.TargetKindModel, domain.TargetKindPrompt:
		output, err := a.invoker.Invoke(ctx, spec, inputFields)
		if err != nil {
			a.logger.Warn("target invocation failed",
				zap.String("target_kind", string(spec.Kind)),
				zap.Error(err),
			)
			return fmt.Sprintf("[target invocation failed: %v]", err), err
		}
		return output, nil

	default:
		err := fmt.Errorf("unknown target kind: %s", spec.Kind)
		return fmt.Sprintf("[target invocation failed: %v]", err), err
	}
}
