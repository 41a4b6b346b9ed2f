package deployer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/artpar/promoter/internal/core/domain"
)

// =============================================================================
// Paced
// =============================================================================

// Paced spaces consecutive deployments at least interval apart to stay under
// per-workspace API rate limits. The first deployment is not delayed.
type Paced struct {
	next    Action
	limiter *rate.Limiter
}

// NewPaced wraps next. A zero or negative interval returns next unchanged.
func NewPaced(next Action, interval time.Duration) Action {
	if interval <= 0 {
		return next
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Deploy implements Action. A cancelled wait fails the item.
func (p *Paced) Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.next.Deploy(ctx, item, target)
}

// =============================================================================
// Dry Run
// =============================================================================

// DryRun logs what would be deployed without calling the platform.
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun creates a dry-run action.
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger.With("component", "dry_run")}
}

// Deploy implements Action.
func (d *DryRun) Deploy(_ context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	d.logger.Info("would deploy item",
		"item", item.Name,
		"type", item.Type,
		"origin", item.Origin.String(),
		"target_workspace_id", target.ID,
	)
	return nil
}
