package pipeline

import (
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// Well-known field keys used when shaping evaluator inputs
const (
	FieldActualOutput    = "actual_output"
	FieldOutput          = "output"
	FieldAnswer          = "answer"
	FieldReferenceOutput = "reference_output"
)

// BuildCodeInput shapes extracted dataset fields and the target's output
// into the two disjoint mappings a code evaluator expects. Either side
// may be empty on its own; both empty at once is an input error.
func BuildCodeInput(datasetFields map[string]string, targetOutput string) (*domain.CodeEvaluatorInput, error) {
	in := &domain.CodeEvaluatorInput{
		DatasetFields:      make(map[string]string, len(datasetFields)),
		TargetOutputFields: make(map[string]string, 1),
	}
	for k, v := range datasetFields {
		in.DatasetFields[k] = v
	}
	if targetOutput != "" {
		in.TargetOutputFields[FieldActualOutput] = targetOutput
	}
	if len(in.DatasetFields) == 0 && len(in.TargetOutputFields) == 0 {
		return nil, apperrors.Validation("code evaluator input is empty: no dataset fields and no target output")
	}
	return in, nil
}

// BuildPromptInput shapes fields into the single merged mapping a prompt
// evaluator expects. When the target produced an output it is inserted
// under "output" and the dataset's own "output" field is discarded: if a
// target ran, its output wins, unconditionally. Remaining dataset fields
// are merged in with target fields winning on key collision.
func BuildPromptInput(datasetFields map[string]string, targetOutput string) *domain.PromptEvaluatorInput {
	merged := make(map[string]string, len(datasetFields)+1)

	for k, v := range datasetFields {
		if targetOutput != "" && k == FieldOutput {
			continue
		}
		merged[k] = v
	}
	if targetOutput != "" {
		merged[FieldOutput] = targetOutput
	}

	return &domain.PromptEvaluatorInput{InputFields: merged}
}
