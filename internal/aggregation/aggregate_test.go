package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t.Run("empty input yields zero stats without error", func(t *testing.T) {
		stats := Aggregate(nil)

		assert.Equal(t, 0, stats.Count)
		assert.Equal(t, 0.0, stats.Average)
		assert.Equal(t, 0.0, stats.Sum)
		assert.Equal(t, 0.0, stats.Max)
		assert.Equal(t, 0.0, stats.Min)
		require.Len(t, stats.Distribution, 3)
		for _, bin := range stats.Distribution {
			assert.Equal(t, 0, bin.Count)
			assert.Equal(t, 0.0, bin.Percentage)
		}
	})

	t.Run("average equals sum over count", func(t *testing.T) {
		scores := []float64{0.1, 0.2, 0.3, 0.4, 0.9}
		stats := Aggregate(scores)

		var sum float64
		for _, s := range scores {
			sum += s
		}
		assert.Equal(t, len(scores), stats.Count)
		assert.InDelta(t, sum, stats.Sum, 1e-9)
		assert.InDelta(t, sum/float64(len(scores)), stats.Average, 1e-9)
		assert.Equal(t, 0.9, stats.Max)
		assert.Equal(t, 0.1, stats.Min)
	})

	t.Run("boundary scores land in the documented bins", func(t *testing.T) {
		stats := Aggregate([]float64{0.50, 0.51, 0.80, 0.81, 1.0})

		require.Len(t, stats.Distribution, 3)
		assert.Equal(t, "0.00-0.50", stats.Distribution[0].Range)
		assert.Equal(t, "0.51-0.80", stats.Distribution[1].Range)
		assert.Equal(t, "0.81-1.00", stats.Distribution[2].Range)

		assert.Equal(t, 1, stats.Distribution[0].Count)
		assert.Equal(t, 2, stats.Distribution[1].Count)
		assert.Equal(t, 2, stats.Distribution[2].Count)

		assert.Equal(t, 20.0, stats.Distribution[0].Percentage)
		assert.Equal(t, 40.0, stats.Distribution[1].Percentage)
		assert.Equal(t, 40.0, stats.Distribution[2].Percentage)
	})

	t.Run("every score lands in exactly one bin", func(t *testing.T) {
		scores := []float64{0.0, 0.25, 0.5, 0.505, 0.7, 0.8, 0.805, 0.9, 1.0}
		stats := Aggregate(scores)

		total := 0
		for _, bin := range stats.Distribution {
			total += bin.Count
		}
		assert.Equal(t, len(scores), total)
	})

	t.Run("out of range scores are clamped before binning", func(t *testing.T) {
		stats := Aggregate([]float64{-0.5, 1.5})

		assert.Equal(t, 1, stats.Distribution[0].Count)
		assert.Equal(t, 1, stats.Distribution[2].Count)
		// Min/max keep the raw values; only binning clamps.
		assert.Equal(t, -0.5, stats.Min)
		assert.Equal(t, 1.5, stats.Max)
	})

	t.Run("percentages are rounded to two decimals", func(t *testing.T) {
		stats := Aggregate([]float64{0.1, 0.2, 0.9})

		assert.InDelta(t, 66.67, stats.Distribution[0].Percentage, 1e-9)
		assert.InDelta(t, 33.33, stats.Distribution[2].Percentage, 1e-9)
	})
}
