package scoring

import (
	"context"
	"log/slog"
	"math"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

// Composite score weights and the valuation curve steepness.
const (
	YieldWeight      = 50
	VolatilityWeight = 15
	ValuationWeight  = 35

	ValuationSteepness = 20
)

// Engine computes population-relative scores.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Score ranks the 12-month accumulated yield and the volatility across the
// whole population, derives the valuation signal from P/VPA and combines
// them into an integer score:
//
//	score = trunc(50*yield_rank + 15*(1 - volatility_rank) + 35*sigmoid(20*(1 - p/vpa)))
//
// The output follows the input order. A record missing any input keeps
// HasScore false.
func (e *Engine) Score(ctx context.Context, records []fund.Record) []fund.Scored {
	yields := make([]numeric.Value, len(records))
	vols := make([]numeric.Value, len(records))
	for i, r := range records {
		yields[i] = r.Get(fund.DY12MAccumulated)
		vols[i] = r.Get(fund.Volatility)
	}
	yieldRanks := PercentRank(yields)
	volRanks := PercentRank(vols)

	one := numeric.Of(1)
	out := make([]fund.Scored, len(records))
	scored := 0
	for i, r := range records {
		s := fund.Scored{
			Record:         r,
			YieldRank:      yieldRanks[i],
			VolatilityRank: volRanks[i],
		}
		s.VolatilityInverseRank = one.Sub(volRanks[i])
		s.ValuationSignal = ValuationSignal(r.Get(fund.PVPA))

		total := s.YieldRank.Scale(YieldWeight).
			Add(s.VolatilityInverseRank.Scale(VolatilityWeight)).
			Add(s.ValuationSignal.Scale(ValuationWeight))
		if f, ok := total.Float64(); ok {
			s.Score = int(math.Trunc(f))
			s.HasScore = true
			scored++
		}
		out[i] = s
	}

	e.logger.InfoContext(ctx, "scored funds",
		"funds", len(records),
		"scored", scored,
	)
	return out
}

// ValuationSignal maps P/VPA to (0, 1): 0.5 at fair value, toward 1 when
// trading below book and toward 0 above it.
func ValuationSignal(pvpa numeric.Value) numeric.Value {
	return pvpa.Map(func(x float64) float64 {
		return Sigmoid(ValuationSteepness * (1 - x))
	})
}
