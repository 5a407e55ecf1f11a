package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	ranking   *RankingService
	maxAge    time.Duration
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. A positive maxAge marks the
// ranking as stale when the last run is older than that.
func NewHealthService(version string, ranking *RankingService, maxAge time.Duration, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		ranking:   ranking,
		maxAge:    maxAge,
		startTime: time.Now(),
		logger:    logger,
	}
}

// LivenessCheck reports that the process is up.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck reports whether a ranking can be served.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"ranking": hs.checkRanking(ctx),
		},
	}

	for _, s := range status.Services {
		if s.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	hs.logger.DebugContext(ctx, "readiness check", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkRanking(ctx context.Context) ServiceHealth {
	if hs.ranking == nil {
		return ServiceHealth{Status: "not_ready", Message: "ranking service not initialized"}
	}
	runs, err := hs.ranking.Runs(ctx, 1)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("run store error: %v", err)}
	}
	if len(runs) == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no ranking run yet"}
	}
	age := time.Since(runs[0].CreatedAt)
	if hs.maxAge > 0 && age > hs.maxAge {
		return ServiceHealth{Status: "stale", Message: fmt.Sprintf("last run %s ago", age.Round(time.Second))}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("last run %s", runs[0].ID)}
}

// Version returns version information
func (hs *HealthService) Version() map[string]any {
	return map[string]any{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(hs.startTime).Seconds(),
		"start_time": hs.startTime.Format(time.RFC3339),
	}
}
