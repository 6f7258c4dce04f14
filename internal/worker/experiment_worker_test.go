package worker

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExperimentRunTask(t *testing.T) {
	payload := &ExperimentRunPayload{
		ExperimentID: uuid.New(),
		RunID:        uuid.New(),
	}

	task, err := NewExperimentRunTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeExperimentRun, task.Type())

	var decoded ExperimentRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload.ExperimentID, decoded.ExperimentID)
	assert.Equal(t, payload.RunID, decoded.RunID)
}

func TestNewAggregateResultsTask(t *testing.T) {
	payload := &AggregateResultsPayload{ExperimentID: uuid.New()}

	task, err := NewAggregateResultsTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeAggregateResults, task.Type())

	var decoded AggregateResultsPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload.ExperimentID, decoded.ExperimentID)
}
