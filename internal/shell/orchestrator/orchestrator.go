// Package orchestrator runs a deployment: it enumerates a source once and
// deploys each item into the target, isolating per-item failures.
// This is part of the Imperative Shell - it sequences the I/O components.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
	"github.com/artpar/promoter/internal/shell/deployer"
	"github.com/artpar/promoter/internal/shell/source"
)

// Observer is notified after each item's outcome is recorded. index is
// 1-based.
type Observer interface {
	OnOutcome(index, total int, outcome domain.DeploymentOutcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index, total int, outcome domain.DeploymentOutcome)

// OnOutcome calls f.
func (f ObserverFunc) OnOutcome(index, total int, outcome domain.DeploymentOutcome) {
	f(index, total, outcome)
}

// Orchestrator folds a deployment action over the items of a source.
type Orchestrator struct {
	action    deployer.Action
	observers []Observer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver adds an observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// New creates an orchestrator that deploys every item with action.
func New(action deployer.Action, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		action: action,
		logger: logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run enumerates src once and processes every item in order.
//
// An enumeration error is returned as is and no summary is produced. Items
// whose type is not allowed by filter are recorded as skipped. An item whose
// deployment fails or panics is recorded as failed and the run continues.
// Every enumerated item gets exactly one outcome.
func (o *Orchestrator) Run(ctx context.Context, src source.ItemSource, target domain.WorkspaceHandle, filter classify.TypeFilter) (*summary.Summary, error) {
	logger := o.logger.With("source", src.Describe(), "target_workspace_id", target.ID)

	items, err := src.Enumerate(ctx)
	if err != nil {
		logger.Error("enumeration failed", "error", err)
		return nil, err
	}

	sum := summary.New()
	total := len(items)
	if total == 0 {
		logger.Info("no items to deploy")
		return sum, nil
	}

	logger.Info("starting deployment", "items", total, "filter", filter.String())
	for i, item := range items {
		index := i + 1

		var outcome domain.DeploymentOutcome
		if !filter.Allows(item.Type) {
			outcome = domain.Skipped(item, domain.SkipReasonFiltered)
			logger.Info("skipping item", "index", index, "total", total, "item", item.Name, "type", item.Type, "reason", outcome.Detail())
		} else {
			logger.Info("deploying item", "index", index, "total", total, "item", item.Name, "type", item.Type)
			if err := o.deploy(ctx, item, target); err != nil {
				outcome = domain.Failed(item, err)
				logger.Error("item deployment failed", "index", index, "total", total, "error", domain.ItemDeploymentError(item, err))
			} else {
				outcome = domain.Succeeded(item)
				logger.Info("deployed item", "index", index, "total", total, "item", item.Name, "type", item.Type)
			}
		}

		sum.Append(outcome)
		for _, obs := range o.observers {
			obs.OnOutcome(index, total, outcome)
		}
	}

	report := sum.Report()
	logger.Info("deployment finished",
		"total", report.Total,
		"succeeded", report.SuccessCount,
		"failed", report.FailedCount,
		"skipped", report.SkippedCount,
	)
	return sum, nil
}

// deploy calls the action, converting a panic into an error for this item.
func (o *Orchestrator) deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during deployment: %v", r)
		}
	}()
	return o.action.Deploy(ctx, item, target)
}
