package store

import (
	"context"
	"time"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for run history.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)

	// Outcome operations
	AppendOutcome(ctx context.Context, rec *OutcomeRecord) error
	ListOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Entities
// =============================================================================

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means the run completed with at least one failed item.
	RunFailed RunStatus = "failed"
	// RunAborted means the run stopped before any item was attempted.
	RunAborted RunStatus = "aborted"
)

// Run is one invocation of the deployment pipeline.
type Run struct {
	ID         string
	Source     string
	SourceMode string
	TargetID   string
	TargetName string
	TypeFilter string
	DryRun     bool
	Status     RunStatus
	Stage      string // Pre-flight stage that aborted the run, if any
	Error      string
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// OutcomeRecord is the persisted form of one item outcome.
type OutcomeRecord struct {
	RunID      string
	Seq        int
	ItemName   string
	ItemType   string
	Origin     string
	Status     string
	Detail     string
	RecordedAt time.Time
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
	Status RunStatus // Empty lists every status
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
