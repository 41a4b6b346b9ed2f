package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// =============================================================================
// Run Lifecycle
// =============================================================================

// Complete records the counts of a finished run and derives its status.
func (r *Run) Complete(report summary.Report, at time.Time) {
	r.Total = report.Total
	r.Succeeded = report.SuccessCount
	r.Failed = report.FailedCount
	r.Skipped = report.SkippedCount
	r.Status = RunSucceeded
	if report.HasFailures() {
		r.Status = RunFailed
	}
	r.FinishedAt = &at
}

// Abort records a run that stopped before deploying anything.
func (r *Run) Abort(err error, at time.Time) {
	r.Status = RunAborted
	if stage, ok := domain.StageOf(err); ok {
		r.Stage = string(stage)
	}
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &at
}

// Duration is the wall time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewOutcomeRecord converts an outcome into its persisted form.
func NewOutcomeRecord(runID string, seq int, o domain.DeploymentOutcome) *OutcomeRecord {
	item := o.Item()
	rec := &OutcomeRecord{
		RunID:    runID,
		Seq:      seq,
		ItemName: item.Name,
		ItemType: string(item.Type),
		Status:   string(o.Status()),
		Detail:   o.Detail(),
	}
	if item.Origin != nil {
		rec.Origin = item.Origin.String()
	}
	return rec
}

// =============================================================================
// Recorder
// =============================================================================

// Recorder appends outcomes to the store as a run progresses. Its OnOutcome
// method satisfies the orchestrator's observer interface. Write failures are
// logged and collected; they never stop the run.
type Recorder struct {
	ctx    context.Context
	store  Store
	runID  string
	logger *slog.Logger

	mu   sync.Mutex
	errs []error
}

// NewRecorder creates a recorder for one run.
func NewRecorder(ctx context.Context, s Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		ctx:    ctx,
		store:  s,
		runID:  runID,
		logger: logger.With("component", "history_recorder", "run_id", runID),
	}
}

// OnOutcome persists one outcome.
func (r *Recorder) OnOutcome(index, _ int, outcome domain.DeploymentOutcome) {
	if err := r.store.AppendOutcome(r.ctx, NewOutcomeRecord(r.runID, index, outcome)); err != nil {
		r.logger.Warn("failed to record outcome", "index", index, "item", outcome.Item().Name, "error", err)
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	}
}

// Err returns the joined write failures, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}
