package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRunStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    RunStatus
		to      RunStatus
		allowed bool
	}{
		{"pending to running", RunStatusPending, RunStatusRunning, true},
		{"pending to stopped", RunStatusPending, RunStatusStopped, true},
		{"pending to completed", RunStatusPending, RunStatusCompleted, false},
		{"running to completed", RunStatusRunning, RunStatusCompleted, true},
		{"running to failed", RunStatusRunning, RunStatusFailed, true},
		{"running to stopped", RunStatusRunning, RunStatusStopped, true},
		{"running to terminating", RunStatusRunning, RunStatusTerminating, true},
		{"running back to pending", RunStatusRunning, RunStatusPending, false},
		{"terminating to terminated", RunStatusTerminating, RunStatusTerminated, true},
		{"terminating to stopped", RunStatusTerminating, RunStatusStopped, true},
		{"terminating to running", RunStatusTerminating, RunStatusRunning, false},
		{"completed is terminal", RunStatusCompleted, RunStatusRunning, false},
		{"failed is terminal", RunStatusFailed, RunStatusRunning, false},
		{"stopped is terminal", RunStatusStopped, RunStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRunStatusStopRequested(t *testing.T) {
	assert.True(t, RunStatusStopped.StopRequested())
	assert.True(t, RunStatusTerminating.StopRequested())
	assert.True(t, RunStatusTerminated.StopRequested())
	assert.False(t, RunStatusRunning.StopRequested())
	assert.False(t, RunStatusPending.StopRequested())
}

func TestTargetSpecValidate(t *testing.T) {
	t.Run("none kind needs no config", func(t *testing.T) {
		assert.NoError(t, TargetSpec{Kind: TargetKindNone}.Validate())
		assert.NoError(t, TargetSpec{}.Validate())
	})

	t.Run("api kind requires url", func(t *testing.T) {
		assert.Error(t, TargetSpec{Kind: TargetKindAPI}.Validate())
		assert.NoError(t, TargetSpec{
			Kind: TargetKindAPI,
			API:  &APITargetSpec{URL: "https://sut.internal/run"},
		}.Validate())
	})

	t.Run("model kind requires model name", func(t *testing.T) {
		assert.Error(t, TargetSpec{Kind: TargetKindModel, Model: &ModelTargetSpec{}}.Validate())
		assert.NoError(t, TargetSpec{
			Kind:  TargetKindModel,
			Model: &ModelTargetSpec{Provider: "openai", Model: "gpt-4o"},
		}.Validate())
	})

	t.Run("prompt kind requires prompt version", func(t *testing.T) {
		assert.Error(t, TargetSpec{Kind: TargetKindPrompt, Prompt: &PromptTargetSpec{}}.Validate())
		assert.NoError(t, TargetSpec{
			Kind:   TargetKindPrompt,
			Prompt: &PromptTargetSpec{PromptVersionID: uuid.New()},
		}.Validate())
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		assert.Error(t, TargetSpec{Kind: "webhook"}.Validate())
	})
}

func TestTargetSpecConfigured(t *testing.T) {
	assert.False(t, TargetSpec{Kind: TargetKindNone}.Configured())
	assert.False(t, TargetSpec{}.Configured())
	assert.True(t, TargetSpec{Kind: TargetKindAPI}.Configured())
}
