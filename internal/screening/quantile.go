package screening

import (
	"fmt"
	"math"
	"sort"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

// Cutoff returns the p-quantile of field over records, skipping absent values.
// It is absent when no record has a value.
func Cutoff(records []fund.Record, field fund.Field, p float64) numeric.Value {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Get(field).Float64(); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return numeric.Absent()
	}
	sort.Float64s(values)
	return numeric.Of(Percentile(values, p))
}

// Percentile calculates the value at percentile p (0..1) of sorted values
// using linear interpolation between closest ranks at index p*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	// Interpolate from the nearer end so results match numpy bit for bit.
	a, b := sorted[lower], sorted[upper]
	weight := index - float64(lower)
	if weight >= 0.5 {
		return b - (b-a)*(1-weight)
	}
	return a + (b-a)*weight
}

// applyQuantile narrows records to one side of the cutoff. Rows with an
// absent value never survive.
func applyQuantile(records []fund.Record, f Filter) ([]fund.Record, numeric.Value) {
	cutoff := Cutoff(records, f.Field, f.Percentile)

	var keep func(numeric.Value) bool
	switch f.Mode {
	case Larger:
		keep = func(x numeric.Value) bool { return x.GreaterOrEqual(cutoff) }
	case Smaller:
		keep = func(x numeric.Value) bool { return x.LessOrEqual(cutoff) }
	default:
		panic(fmt.Sprintf("screening: %v %q in filter %q", ErrInvalidMode, f.Mode, f.Name))
	}

	out := make([]fund.Record, 0, len(records))
	for _, r := range records {
		if keep(r.Get(f.Field)) {
			out = append(out, r)
		}
	}
	return out, cutoff
}
