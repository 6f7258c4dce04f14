package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
)

func TestBuildCodeInput(t *testing.T) {
	t.Run("keeps dataset and target fields disjoint", func(t *testing.T) {
		in, err := BuildCodeInput(map[string]string{"question": "q"}, "the answer")
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"question": "q"}, in.DatasetFields)
		assert.Equal(t, map[string]string{"actual_output": "the answer"}, in.TargetOutputFields)
	})

	t.Run("allows one side to be empty", func(t *testing.T) {
		in, err := BuildCodeInput(nil, "output only")
		require.NoError(t, err)
		assert.Empty(t, in.DatasetFields)
		assert.Equal(t, "output only", in.TargetOutputFields["actual_output"])

		in, err = BuildCodeInput(map[string]string{"question": "q"}, "")
		require.NoError(t, err)
		assert.Empty(t, in.TargetOutputFields)
	})

	t.Run("rejects both sides empty", func(t *testing.T) {
		_, err := BuildCodeInput(nil, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestBuildPromptInput(t *testing.T) {
	t.Run("target output wins over dataset output", func(t *testing.T) {
		in := BuildPromptInput(map[string]string{
			"question": "q",
			"output":   "stale dataset output",
		}, "fresh target output")

		assert.Equal(t, "fresh target output", in.InputFields["output"])
		assert.Equal(t, "q", in.InputFields["question"])
		assert.Len(t, in.InputFields, 2)
	})

	t.Run("dataset output survives when target produced nothing", func(t *testing.T) {
		in := BuildPromptInput(map[string]string{"output": "dataset output"}, "")

		assert.Equal(t, "dataset output", in.InputFields["output"])
	})

	t.Run("empty inputs yield an empty mapping", func(t *testing.T) {
		in := BuildPromptInput(nil, "")
		assert.Empty(t, in.InputFields)
	})
}
