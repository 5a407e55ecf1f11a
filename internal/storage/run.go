// Package storage persists ranking runs so past results can be served and
// audited. Stored runs are read back as they were saved; they are never
// re-scored.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one ranking snapshot.
type Run struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration_ns"`

	InputRows         int `json:"input_rows"`
	Normalized        int `json:"normalized"`
	DroppedMissing    int `json:"dropped_missing"`
	DroppedUnparsable int `json:"dropped_unparsable"`
	VacancyMatched    int `json:"vacancy_matched"`
	Scored            int `json:"scored"`

	Stages []Stage `json:"stages"`
	// Funds is nil when the run was listed without its rows.
	Funds []Fund `json:"funds,omitempty"`
}

// Stage is the number of funds left after a pipeline stage.
type Stage struct {
	Label string `json:"label"`
	Funds int    `json:"funds"`
}

// Fund is one ranked row. Values holds every present numeric column keyed by
// its canonical name.
type Fund struct {
	Position        int                `json:"position"`
	ID              string             `json:"id"`
	Sector          string             `json:"sector"`
	Score           *int               `json:"score,omitempty"`
	YieldRank       *float64           `json:"yield_rank,omitempty"`
	VolatilityRank  *float64           `json:"volatility_rank,omitempty"`
	ValuationSignal *float64           `json:"valuation_signal,omitempty"`
	Values          map[string]float64 `json:"values,omitempty"`
	Extra           map[string]string  `json:"extra,omitempty"`
}

// Store saves and loads runs.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// Latest returns the most recent run with its funds.
	Latest(ctx context.Context) (*Run, error)
	// Runs lists runs newest first, without funds.
	Runs(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
