package clustering

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	apperrors "github.com/clustergraph/cluster-gcn-pipeline/pkg/errors"
)

// PaddingMethod converts variable per-cluster sizes into one static
// maximum shape. Applied independently to node counts and edge counts.
type PaddingMethod string

const (
	// PaddingAverage pads or prunes every batch to the mean size.
	PaddingAverage PaddingMethod = "average"

	// PaddingAveragePlusStd allows one standard deviation of headroom.
	PaddingAveragePlusStd PaddingMethod = "average_plus_std"

	// PaddingUpperBound guarantees no batch ever needs truncation.
	PaddingUpperBound PaddingMethod = "upper_bound"
)

// ParsePaddingMethod validates a padding method name. An empty string
// defaults to average, matching the common training configuration.
func ParsePaddingMethod(s string) (PaddingMethod, error) {
	switch PaddingMethod(s) {
	case "":
		return PaddingAverage, nil
	case PaddingAverage, PaddingAveragePlusStd, PaddingUpperBound:
		return PaddingMethod(s), nil
	default:
		return "", apperrors.NewConfiguration(
			"unknown padding method %q (want average, average_plus_std or upper_bound)", s)
	}
}

// BatchMax applies the policy to per-cluster counts and scales to a batch
// of groupSize clusters. For upper_bound the result is the sum of the
// groupSize largest clusters, so no sampled group can ever exceed it.
func (m PaddingMethod) BatchMax(counts []int, groupSize int) int {
	if len(counts) == 0 {
		return 0
	}
	if groupSize > len(counts) {
		groupSize = len(counts)
	}
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}

	switch m {
	case PaddingUpperBound:
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		var sum float64
		for _, v := range values[:groupSize] {
			sum += v
		}
		return int(sum)
	case PaddingAveragePlusStd:
		mean := stat.Mean(values, nil)
		std := 0.0
		if len(values) > 1 {
			std = stat.StdDev(values, nil)
		}
		return int(math.Ceil((mean + std) * float64(groupSize)))
	default: // PaddingAverage
		return int(math.Ceil(stat.Mean(values, nil) * float64(groupSize)))
	}
}
