package pipeline

import (
	"context"

	"fiirank/internal/enrich"
	"fiirank/internal/normalize"
	"fiirank/internal/scoring"
	"fiirank/internal/screening"
)

// Step identifiers, in execution order.
const (
	StepNormalize = "normalize"
	StepEnrich    = "enrich"
	StepScreen    = "screen"
	StepScore     = "score"
	StepRank      = "rank"
)

type normalizeStep struct {
	baseStep
	normalizer *normalize.Normalizer
}

func (s *normalizeStep) Execute(ctx context.Context, state *State) error {
	res, err := s.normalizer.Normalize(ctx, state.Primary)
	if err != nil {
		return err
	}
	state.Normalized = res
	state.Records = res.Records
	state.normalized = true
	return nil
}

type enrichStep struct {
	baseStep
	enricher *enrich.Enricher
}

// SkipReason bypasses the join when no vacancy table was supplied; every
// fund then keeps an absent vacancy.
func (s *enrichStep) SkipReason(state *State) string {
	if len(state.Secondary.Header) == 0 {
		return "no vacancy table"
	}
	return ""
}

func (s *enrichStep) Execute(ctx context.Context, state *State) error {
	res, err := s.enricher.Enrich(ctx, state.Records, state.Secondary)
	if err != nil {
		return err
	}
	state.Records = res.Records
	state.Matched = res.Matched
	return nil
}

type screenStep struct {
	baseStep
	engine *screening.Engine
}

func (s *screenStep) Execute(ctx context.Context, state *State) error {
	state.Records, state.Trace = s.engine.Apply(ctx, state.Records)
	return nil
}

type scoreStep struct {
	baseStep
	engine *scoring.Engine
}

func (s *scoreStep) Execute(ctx context.Context, state *State) error {
	state.Scored = s.engine.Score(ctx, state.Records)
	state.scored = true
	return nil
}

type rankStep struct {
	baseStep
}

func (s *rankStep) Execute(_ context.Context, state *State) error {
	state.Scored = scoring.Rank(state.Scored)
	return nil
}
