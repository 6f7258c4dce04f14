package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
)

type stubInvoker struct {
	output string
	err    error
	calls  int
}

func (s *stubInvoker) Invoke(ctx context.Context, spec domain.TargetSpec, inputFields map[string]string) (string, error) {
	s.calls++
	return s.output, s.err
}

func TestTargetAdapterInvoke(t *testing.T) {
	logger := zap.NewNop()

	t.Run("none kind reads item fields in priority order", func(t *testing.T) {
		invoker := &stubInvoker{}
		adapter := NewTargetAdapter(invoker, logger)

		fields := map[string]string{
			"answer":           "from answer",
			"reference_output": "from reference",
		}
		output, err := adapter.Invoke(context.Background(), domain.TargetSpec{Kind: domain.TargetKindNone}, fields, nil)
		require.NoError(t, err)
		assert.Equal(t, "from answer", output)

		fields["output"] = "from output"
		output, err = adapter.Invoke(context.Background(), domain.TargetSpec{Kind: domain.TargetKindNone}, fields, nil)
		require.NoError(t, err)
		assert.Equal(t, "from output", output)

		assert.Zero(t, invoker.calls)
	})

	t.Run("none kind falls back to item data when fields miss", func(t *testing.T) {
		adapter := NewTargetAdapter(&stubInvoker{}, logger)
		item := &domain.DatasetItem{
			ID: uuid.New(),
			Turns: []domain.Turn{
				{FieldDataList: []domain.FieldData{{Key: "reference_output", Content: "fallback"}}},
			},
		}

		output, err := adapter.Invoke(context.Background(), domain.TargetSpec{Kind: domain.TargetKindNone}, nil, item)
		require.NoError(t, err)
		assert.Equal(t, "fallback", output)
	})

	t.Run("none kind with nothing present yields empty output", func(t *testing.T) {
		adapter := NewTargetAdapter(&stubInvoker{}, logger)

		output, err := adapter.Invoke(context.Background(), domain.TargetSpec{Kind: domain.TargetKindNone}, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, output)
	})

	t.Run("configured kind delegates to the invoker", func(t *testing.T) {
		invoker := &stubInvoker{output: "sut said hi"}
		adapter := NewTargetAdapter(invoker, logger)

		spec := domain.TargetSpec{Kind: domain.TargetKindAPI, API: &domain.APITargetSpec{URL: "https://sut"}}
		output, err := adapter.Invoke(context.Background(), spec, map[string]string{"question": "hi"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "sut said hi", output)
		assert.Equal(t, 1, invoker.calls)
	})

	t.Run("invoker failure returns legible output plus the raw error", func(t *testing.T) {
		invoker := &stubInvoker{err: errors.New("connection refused")}
		adapter := NewTargetAdapter(invoker, logger)

		spec := domain.TargetSpec{Kind: domain.TargetKindModel, Model: &domain.ModelTargetSpec{Model: "gpt-4o"}}
		output, err := adapter.Invoke(context.Background(), spec, nil, nil)
		require.Error(t, err)
		assert.Contains(t, output, "target invocation failed")
		assert.Contains(t, output, "connection refused")
	})

	t.Run("unknown kind fails without an external call", func(t *testing.T) {
		invoker := &stubInvoker{}
		adapter := NewTargetAdapter(invoker, logger)

		_, err := adapter.Invoke(context.Background(), domain.TargetSpec{Kind: "webhook"}, nil, nil)
		require.Error(t, err)
		assert.Zero(t, invoker.calls)
	})
}

func TestNormalizeOutput(t *testing.T) {
	t.Run("passes through a scored output", func(t *testing.T) {
		score := 0.8
		out := NormalizeOutput(&domain.EvaluatorOutput{Score: &score, Reason: "good"})

		require.NotNil(t, out.Score)
		assert.Equal(t, 0.8, *out.Score)
		assert.Equal(t, "good", out.Reason)
	})

	t.Run("passes through an evaluator-local error", func(t *testing.T) {
		out := NormalizeOutput(&domain.EvaluatorOutput{
			Error: &domain.EvaluatorError{Code: "timeout", Message: "deadline exceeded"},
		})

		assert.Nil(t, out.Score)
		require.NotNil(t, out.Error)
		assert.Equal(t, "timeout", out.Error.Code)
	})

	t.Run("nil score and nil error yields a diagnostic reason with the raw output", func(t *testing.T) {
		out := NormalizeOutput(&domain.EvaluatorOutput{Raw: `{"verdict":"maybe"}`})

		assert.Nil(t, out.Score)
		assert.Nil(t, out.Error)
		assert.NotEmpty(t, out.Reason)
		assert.Contains(t, out.Reason, `{"verdict":"maybe"}`)
	})

	t.Run("nil output yields a non-empty reason", func(t *testing.T) {
		out := NormalizeOutput(nil)
		assert.NotEmpty(t, out.Reason)
	})
}
