package pipeline

import (
	"fiirank/internal/fund"
	"fiirank/internal/scoring"
)

// Stage is one line of a run summary.
type Stage struct {
	Label string
	Funds int
}

// Summary lists how many funds survived each phase of the run, from the raw
// input rows down to the scored funds.
func (r *Result) Summary() []Stage {
	stages := []Stage{
		{Label: "input rows", Funds: r.InputRows},
		{Label: "normalized", Funds: r.Normalized},
	}
	for _, t := range r.Trace {
		stages = append(stages, Stage{Label: t.Filter, Funds: t.Out})
	}
	return append(stages, Stage{Label: "scored", Funds: r.ScoredCount()})
}

// ScoredCount returns how many ranked funds carry a score.
func (r *Result) ScoredCount() int {
	n := 0
	for _, s := range r.Ranked {
		if s.HasScore {
			n++
		}
	}
	return n
}

// Top returns the n best funds. n <= 0 means all of them.
func (r *Result) Top(n int) []fund.Scored {
	return scoring.Top(r.Ranked, n)
}
