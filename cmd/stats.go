package cmd

import (
	"math"
	"sort"
)

type number interface {
	int | int64 | float64
}

// percentile returns the p-th percentile (0-100) of data, interpolating
// linearly between ranks. data is sorted in place. Empty input yields 0.
func percentile[T number](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	sort.Slice(data, func(i, j int) bool { return data[i] < data[j] })

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return float64(data[n-1])
	}
	if lowerIdx == upperIdx {
		return float64(data[lowerIdx])
	}
	lower, upper := float64(data[lowerIdx]), float64(data[upperIdx])
	return lower + (upper-lower)*(rank-float64(lowerIdx))
}

// mean returns the arithmetic mean of numbers, or 0 for none.
func mean[T number](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range numbers {
		sum += float64(v)
	}
	return sum / float64(len(numbers))
}
