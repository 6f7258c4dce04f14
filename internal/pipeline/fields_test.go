package pipeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/evalforge/api/internal/domain"
)

func TestExtractFields(t *testing.T) {
	t.Run("maps first turn fields by name", func(t *testing.T) {
		item := &domain.DatasetItem{
			ID: uuid.New(),
			Turns: []domain.Turn{
				{FieldDataList: []domain.FieldData{
					{Key: "q", Name: "question", Content: "What is 2+2?"},
					{Key: "a", Name: "answer", Content: "4"},
				}},
			},
		}

		fields, err := ExtractFields(item)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"question": "What is 2+2?",
			"answer":   "4",
		}, fields)
	})

	t.Run("ignores later turns", func(t *testing.T) {
		item := &domain.DatasetItem{
			ID: uuid.New(),
			Turns: []domain.Turn{
				{FieldDataList: []domain.FieldData{{Name: "question", Content: "first"}}},
				{FieldDataList: []domain.FieldData{{Name: "question", Content: "second"}}},
			},
		}

		fields, err := ExtractFields(item)
		require.NoError(t, err)
		assert.Equal(t, "first", fields["question"])
	})

	t.Run("falls back to key when name is empty", func(t *testing.T) {
		item := &domain.DatasetItem{
			ID: uuid.New(),
			Turns: []domain.Turn{
				{FieldDataList: []domain.FieldData{
					{Key: "raw_key", Content: "value"},
					{Content: "orphan"},
				}},
			},
		}

		fields, err := ExtractFields(item)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"raw_key": "value"}, fields)
	})

	t.Run("missing turns yield an empty mapping", func(t *testing.T) {
		fields, err := ExtractFields(&domain.DatasetItem{ID: uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, fields)

		fields, err = ExtractFields(nil)
		require.NoError(t, err)
		assert.Empty(t, fields)
	})

	t.Run("rejects the reserved turns field name", func(t *testing.T) {
		item := &domain.DatasetItem{
			ID: uuid.New(),
			Turns: []domain.Turn{
				{FieldDataList: []domain.FieldData{{Name: "turns", Content: "{}"}}},
			},
		}

		_, err := ExtractFields(item)
		assert.Error(t, err)
	})
}
