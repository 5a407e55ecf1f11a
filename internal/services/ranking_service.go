package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fiirank/internal/exporter"
	"fiirank/internal/fund"
	"fiirank/internal/infrastructure"
	"fiirank/internal/numeric"
	"fiirank/internal/pipeline"
	"fiirank/internal/sources"
	"fiirank/internal/storage"
)

// InputFetcher acquires the tables of one run.
type InputFetcher interface {
	FetchAll(ctx context.Context) (sources.Inputs, error)
}

// FileWriter writes a sheet to a dated file and returns its path.
type FileWriter interface {
	Write(ctx context.Context, sheet exporter.Sheet, date time.Time) (string, error)
}

// SheetPublisher publishes a sheet to a remote spreadsheet.
type SheetPublisher interface {
	Write(ctx context.Context, sheet exporter.Sheet) error
}

// RankingOptions wires a RankingService. Files, Publisher and Store are
// optional.
type RankingOptions struct {
	Fetcher   InputFetcher
	Pipeline  *pipeline.Pipeline
	Files     []FileWriter
	Publisher SheetPublisher
	Store     storage.Store
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Report is the outcome of a refresh.
type Report struct {
	Run    *storage.Run
	Result *pipeline.Result
	// Files are the export paths written.
	Files []string
	// Warnings lists non-fatal failures, such as a Sheets publication error.
	Warnings []string
}

// RankingService runs and serves rankings.
type RankingService struct {
	fetcher   InputFetcher
	pipeline  *pipeline.Pipeline
	files     []FileWriter
	publisher SheetPublisher
	store     storage.Store
	logger    *slog.Logger
	now       func() time.Time

	refreshing sync.Mutex

	mu     sync.RWMutex
	latest *storage.Run
}

// NewRankingService creates the service.
func NewRankingService(opts RankingOptions) *RankingService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &RankingService{
		fetcher:   opts.Fetcher,
		pipeline:  opts.Pipeline,
		files:     opts.Files,
		publisher: opts.Publisher,
		store:     opts.Store,
		logger:    infrastructure.WithComponent(logger, "ranking_service"),
		now:       now,
	}
}

// Refresh fetches fresh inputs, ranks them, exports and stores the run.
func (s *RankingService) Refresh(ctx context.Context) (*Report, error) {
	if !s.refreshing.TryLock() {
		return nil, ErrRefreshRunning
	}
	defer s.refreshing.Unlock()

	ctx = infrastructure.EnsureTraceID(ctx)
	started := s.now()
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	logger.InfoContext(ctx, "refresh started")

	inputs, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "refresh failed", "phase", "fetch", "error", err)
		return nil, err
	}

	res, err := s.pipeline.Run(ctx, inputs.Primary, inputs.Secondary)
	if err != nil {
		logger.ErrorContext(ctx, "refresh failed", "phase", "pipeline", "error", err)
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	report := &Report{Result: res}
	sheet := exporter.BuildSheet(res.Ranked, res.ExtraColumns)
	for _, w := range s.files {
		path, err := w.Write(ctx, sheet, started)
		if err != nil {
			logger.ErrorContext(ctx, "refresh failed", "phase", "export", "error", err)
			return nil, fmt.Errorf("export ranking: %w", err)
		}
		report.Files = append(report.Files, path)
	}
	if s.publisher != nil {
		if err := s.publisher.Write(ctx, sheet); err != nil {
			logger.WarnContext(ctx, "sheets publication failed", "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("sheets: %v", err))
		}
	}

	report.Run = Snapshot(runID, started, res)
	if s.store != nil {
		if err := s.store.Save(ctx, report.Run); err != nil {
			logger.ErrorContext(ctx, "refresh failed", "phase", "store", "error", err)
			return nil, fmt.Errorf("store run: %w", err)
		}
	}

	s.mu.Lock()
	s.latest = report.Run
	s.mu.Unlock()

	logger.InfoContext(ctx, "refresh completed",
		"funds", len(res.Ranked),
		"scored", report.Run.Scored,
		"files", len(report.Files),
		"duration", s.now().Sub(started),
	)
	return report, nil
}

// Latest returns the most recent run, from the store when there is one.
func (s *RankingService) Latest(ctx context.Context) (*storage.Run, error) {
	if s.store != nil {
		return s.store.Latest(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrRunNotFound
	}
	return s.latest, nil
}

// Get returns the run with id.
func (s *RankingService) Get(ctx context.Context, id string) (*storage.Run, error) {
	if s.store != nil {
		return s.store.Get(ctx, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.latest.ID != id {
		return nil, ErrRunNotFound
	}
	return s.latest, nil
}

// Runs lists past runs newest first, without their funds. Without a store
// only the last run of this process is known.
func (s *RankingService) Runs(ctx context.Context, limit int) ([]storage.Run, error) {
	if s.store != nil {
		return s.store.Runs(ctx, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return []storage.Run{}, nil
	}
	run := *s.latest
	run.Funds = nil
	return []storage.Run{run}, nil
}

// Snapshot converts a pipeline result into a storable run.
func Snapshot(id string, at time.Time, res *pipeline.Result) *storage.Run {
	run := &storage.Run{
		ID:                id,
		CreatedAt:         at.UTC(),
		Duration:          res.Duration,
		InputRows:         res.InputRows,
		Normalized:        res.Normalized,
		DroppedMissing:    res.DroppedMissing,
		DroppedUnparsable: res.DroppedUnparsable,
		VacancyMatched:    res.VacancyMatched,
		Scored:            res.ScoredCount(),
		Funds:             make([]storage.Fund, len(res.Ranked)),
	}
	for _, st := range res.Summary() {
		run.Stages = append(run.Stages, storage.Stage{Label: st.Label, Funds: st.Funds})
	}
	for i, s := range res.Ranked {
		run.Funds[i] = snapshotFund(s)
	}
	return run
}

func snapshotFund(s fund.Scored) storage.Fund {
	f := storage.Fund{
		Position:        s.Position,
		ID:              s.ID,
		Sector:          s.Sector,
		YieldRank:       floatPtr(s.YieldRank),
		VolatilityRank:  floatPtr(s.VolatilityRank),
		ValuationSignal: floatPtr(s.ValuationSignal),
		Values:          map[string]float64{},
	}
	if s.HasScore {
		score := s.Score
		f.Score = &score
	}
	for _, field := range fund.Fields() {
		if v, ok := s.Get(field).Float64(); ok {
			f.Values[field.Column()] = v
		}
	}
	if len(s.Extra) > 0 {
		f.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			f.Extra[k] = v
		}
	}
	return f
}

func floatPtr(v numeric.Value) *float64 {
	if f, ok := v.Float64(); ok {
		return &f
	}
	return nil
}
