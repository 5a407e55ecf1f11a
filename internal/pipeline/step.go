package pipeline

import (
	"context"
	"sync"
	"time"

	"fiirank/internal/fund"
	"fiirank/internal/normalize"
	"fiirank/internal/screening"
	"fiirank/internal/table"
)

// Step represents a single step of a ranking run
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Execute runs the step against the shared run state
	Execute(ctx context.Context, state *State) error
}

// skipper is implemented by steps that may be bypassed for a given input.
type skipper interface {
	SkipReason(state *State) string
}

// State is the working data handed from step to step.
type State struct {
	Primary   table.Table
	Secondary table.Table

	// Records is the current fund working set.
	Records []fund.Record
	// Scored is set once the score step has run.
	Scored []fund.Scored

	Normalized normalize.Result
	Matched    int
	Trace      screening.Trace

	normalized bool
	scored     bool
}

// Len returns the size of the current working set: raw rows before
// normalization, scored funds after scoring, fund records in between.
func (s *State) Len() int {
	switch {
	case s.scored:
		return len(s.Scored)
	case s.normalized:
		return len(s.Records)
	default:
		return s.Primary.Len()
	}
}

// StepStatus represents the current status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a step
type StepState struct {
	mu        sync.RWMutex
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	In        int        `json:"in"`
	Out       int        `json:"out"`
	Message   string     `json:"message,omitempty"`
	Error     error      `json:"-"`
}

// NewStepState creates a pending step state
func NewStepState(id, name string) *StepState {
	return &StepState{ID: id, Name: name, Status: StepStatusPending}
}

// Start marks the step as active with in records entering it
func (s *StepState) Start(in int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
	s.In = in
}

// Complete marks the step as completed with out records leaving it
func (s *StepState) Complete(out int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Out = out
}

// Fail marks the step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
	if err != nil {
		s.Message = err.Error()
	}
}

// Skip marks the step as skipped. The working set passes through unchanged.
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.StartTime == nil {
		s.StartTime = &now
	}
	s.EndTime = &now
	s.Status = StepStatusSkipped
	s.Message = reason
	s.Out = s.In
}

// Snapshot returns the status under the lock.
func (s *StepState) Snapshot() (StepStatus, int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status, s.In, s.Out
}

// Duration returns the duration of the step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// baseStep provides ID and Name for step implementations
type baseStep struct {
	id   string
	name string
}

func (b baseStep) ID() string   { return b.id }
func (b baseStep) Name() string { return b.name }
