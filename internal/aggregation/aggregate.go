// Package aggregation computes statistical summaries of evaluator
// scores for an experiment.
package aggregation

import (
	"math"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// Bin labels. The 0.80 -> 0.81 boundary gap in the labels is inherited
// product behavior; placement below uses a closed else-if chain so every
// score still lands in exactly one bin. Do not "fix" the labels without
// product confirmation.
const (
	binLowLabel  = "0.00-0.50"
	binMidLabel  = "0.51-0.80"
	binHighLabel = "0.81-1.00"
)

// Aggregate computes average/sum/max/min and the fixed three-bin
// distribution over the given scores. Scores are clamped to [0,1]
// before binning. An empty input yields a zero-valued result for every
// statistic, not an error.
func Aggregate(scores []float64) domain.AggregateStats {
	stats := domain.AggregateStats{
		Count: len(scores),
		Distribution: []domain.DistributionBin{
			{Range: binLowLabel},
			{Range: binMidLabel},
			{Range: binHighLabel},
		},
	}
	if len(scores) == 0 {
		return stats
	}

	stats.Max = scores[0]
	stats.Min = scores[0]
	for _, s := range scores {
		stats.Sum += s
		if s > stats.Max {
			stats.Max = s
		}
		if s < stats.Min {
			stats.Min = s
		}

		c := clamp(s)
		switch {
		case c <= 0.50:
			stats.Distribution[0].Count++
		case c <= 0.80:
			stats.Distribution[1].Count++
		default:
			stats.Distribution[2].Count++
		}
	}
	stats.Average = stats.Sum / float64(len(scores))

	total := float64(len(scores))
	for i := range stats.Distribution {
		stats.Distribution[i].Percentage = round2(float64(stats.Distribution[i].Count) / total * 100)
	}

	return stats
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
