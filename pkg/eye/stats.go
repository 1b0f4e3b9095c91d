package eye

import (
	"math"
	"sort"
)

// TrimmedMean returns the mean of values after dropping the lowest and
// highest trimRatio fraction. The trim count is capped so at least half of
// the samples survive. Returns false for an empty input.
func TrimmedMean(values []float64, trimRatio float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	trim := int(math.Floor(float64(n) * clamp(trimRatio, 0, 0.5)))
	keep := (n + 1) / 2
	if maxTrim := (n - keep) / 2; trim > maxTrim {
		trim = maxTrim
	}

	kept := sorted[trim : n-trim]
	sum := 0.0
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept)), true
}
