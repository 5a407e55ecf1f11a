package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/patrickmn/go-cache"

	apierrors "fiirank/internal/errors"
	"fiirank/internal/middleware"
	"fiirank/internal/services"
	"fiirank/internal/storage"
)

// DefaultRankingLimit is the number of funds returned when no limit is given.
const DefaultRankingLimit = 20

const latestKey = "latest"

// RankingService is what the ranking routes need from the service layer.
type RankingService interface {
	Refresh(ctx context.Context) (*services.Report, error)
	Latest(ctx context.Context) (*storage.Run, error)
	Get(ctx context.Context, id string) (*storage.Run, error)
	Runs(ctx context.Context, limit int) ([]storage.Run, error)
}

// RankingQuery are the filters of GET /api/v1/ranking. A zero limit returns
// every fund; a positive min_score drops unscored funds.
type RankingQuery struct {
	Limit    int     `query:"limit" validate:"gte=0,lte=1000"`
	Sector   string  `query:"sector" validate:"max=100"`
	MinScore float64 `query:"min_score" validate:"gte=0,lte=100"`
}

// RunsQuery is the query of GET /api/v1/ranking/runs.
type RunsQuery struct {
	Limit int `query:"limit" validate:"gte=1,lte=500"`
}

// RankingResponse is a filtered view of one run.
type RankingResponse struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Total     int            `json:"total"`
	Funds     []storage.Fund `json:"funds"`
}

// RunsResponse lists runs without their funds.
type RunsResponse struct {
	Runs []storage.Run `json:"runs"`
}

// RefreshResponse describes a completed refresh.
type RefreshResponse struct {
	Run      *storage.Run `json:"run"`
	Files    []string     `json:"files,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// RankingHandler serves rankings, caching stored runs in memory.
type RankingHandler struct {
	service        RankingService
	cache          *cache.Cache
	decoder        *middleware.QueryDecoder
	refreshTimeout time.Duration
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewRankingHandler creates the handler. Runs are cached for cacheTTL; a
// non-positive TTL disables the cache.
func NewRankingHandler(service RankingService, cacheTTL, refreshTimeout time.Duration, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RankingHandler {
	h := &RankingHandler{
		service:        service,
		decoder:        middleware.NewQueryDecoder(),
		refreshTimeout: refreshTimeout,
		logger:         logger.With(slog.String("component", "ranking_handler")),
		errorHandler:   errorHandler,
	}
	if cacheTTL > 0 {
		h.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return h
}

// Routes returns the ranking routes.
func (h *RankingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetRanking)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Post("/refresh", h.Refresh)
	return r
}

// GetRanking handles GET /api/v1/ranking
func (h *RankingHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	q := RankingQuery{Limit: DefaultRankingLimit}
	if err := h.decoder.Decode(r.URL.Query(), &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	run, err := h.load(r.Context(), latestKey, func(ctx context.Context) (*storage.Run, error) {
		return h.service.Latest(ctx)
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	funds := filterFunds(run.Funds, q)
	resp := RankingResponse{
		RunID:     run.ID,
		CreatedAt: run.CreatedAt,
		Total:     len(funds),
		Funds:     funds,
	}
	if q.Limit > 0 && len(funds) > q.Limit {
		resp.Funds = funds[:q.Limit]
	}
	render.JSON(w, r, resp)
}

// ListRuns handles GET /api/v1/ranking/runs
func (h *RankingHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := RunsQuery{Limit: 20}
	if err := h.decoder.Decode(r.URL.Query(), &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	runs, err := h.service.Runs(r.Context(), q.Limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, RunsResponse{Runs: runs})
}

// GetRun handles GET /api/v1/ranking/runs/{id}
func (h *RankingHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.load(r.Context(), "run:"+id, func(ctx context.Context) (*storage.Run, error) {
		return h.service.Get(ctx, id)
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, run)
}

// Refresh handles POST /api/v1/ranking/refresh
func (h *RankingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.refreshTimeout)
		defer cancel()
	}

	report, err := h.service.Refresh(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if h.cache != nil {
		h.cache.Set(latestKey, report.Run, cache.DefaultExpiration)
	}
	h.logger.InfoContext(ctx, "ranking refreshed",
		slog.String("run_id", report.Run.ID),
		slog.Int("scored", report.Run.Scored))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RefreshResponse{
		Run:      summaryOf(report.Run),
		Files:    report.Files,
		Warnings: report.Warnings,
	})
}

// load reads key from the cache, falling back to fetch.
func (h *RankingHandler) load(ctx context.Context, key string, fetch func(context.Context) (*storage.Run, error)) (*storage.Run, error) {
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return v.(*storage.Run), nil
		}
	}
	run, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		h.cache.Set(key, run, cache.DefaultExpiration)
	}
	return run, nil
}

func filterFunds(funds []storage.Fund, q RankingQuery) []storage.Fund {
	out := make([]storage.Fund, 0, len(funds))
	for _, f := range funds {
		if q.Sector != "" && !strings.EqualFold(f.Sector, q.Sector) {
			continue
		}
		if q.MinScore > 0 && (f.Score == nil || float64(*f.Score) < q.MinScore) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// summaryOf drops the funds; clients read them from the ranking route.
func summaryOf(run *storage.Run) *storage.Run {
	s := *run
	s.Funds = nil
	return &s
}
