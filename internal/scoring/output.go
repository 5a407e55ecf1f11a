package scoring

import (
	"sort"

	"fiirank/internal/fund"
)

// Rank returns a copy of scored sorted by score, highest first, and sets the
// 1-based Position. The sort is stable: equal scores keep their input order.
// Records without a score go last.
func Rank(scored []fund.Scored) []fund.Scored {
	out := append([]fund.Scored(nil), scored...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasScore != b.HasScore {
			return a.HasScore
		}
		return a.Score > b.Score
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Top returns at most n leading records of a ranked slice. n <= 0 means all.
func Top(ranked []fund.Scored, n int) []fund.Scored {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
