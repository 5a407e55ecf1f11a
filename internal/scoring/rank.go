package scoring

import (
	"math"
	"sort"

	"fiirank/internal/numeric"
)

// PercentRank returns the ascending percentile rank of each value in (0, 1].
// Tied values share the average of their ranks, and ranks are divided by the
// number of present values. Absent inputs get absent ranks and do not count.
func PercentRank(values []numeric.Value) []numeric.Value {
	type entry struct {
		idx int
		v   float64
	}

	present := make([]entry, 0, len(values))
	for i, v := range values {
		if f, ok := v.Float64(); ok {
			present = append(present, entry{idx: i, v: f})
		}
	}

	out := make([]numeric.Value, len(values))
	n := len(present)
	if n == 0 {
		return out
	}

	sort.SliceStable(present, func(i, j int) bool { return present[i].v < present[j].v })

	for start := 0; start < n; {
		end := start + 1
		for end < n && present[end].v == present[start].v {
			end++
		}
		// ranks start+1..end share their mean
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			out[present[k].idx] = numeric.Of(avg / float64(n))
		}
		start = end
	}
	return out
}

// Sigmoid is the logistic function 1 / (1 + e^-x).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
