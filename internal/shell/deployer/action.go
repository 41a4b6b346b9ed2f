// Package deployer carries out the per-item deployment action chosen by an
// item's origin.
// This is part of the Imperative Shell - every action talks to the platform.
package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/fabric"
)

// Action deploys one item into the target workspace. A returned error fails
// that item only.
type Action interface {
	Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error

// Deploy calls f.
func (f ActionFunc) Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	return f(ctx, item, target)
}

// ItemAPI is the part of the platform API actions need. *fabric.Client
// implements it.
type ItemAPI interface {
	CopyItem(ctx context.Context, sourceWorkspaceID, itemID, targetWorkspaceID, displayName string) (*fabric.Item, error)
	CreateItem(ctx context.Context, workspaceID string, req fabric.CreateItemRequest) error
}

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher routes each item to the action registered for its origin kind.
type Dispatcher struct {
	actions map[domain.OriginKind]Action
	logger  *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		actions: make(map[domain.OriginKind]Action),
		logger:  logger.With("component", "dispatcher"),
	}
}

// Register sets the action for an origin kind and returns d for chaining.
func (d *Dispatcher) Register(kind domain.OriginKind, action Action) *Dispatcher {
	d.actions[kind] = action
	return d
}

// NewDefaultDispatcher wires the remote copy and local packaging actions.
func NewDefaultDispatcher(remote *RemoteCopyAction, local *LocalPackageAction, logger *slog.Logger) *Dispatcher {
	return NewDispatcher(logger).
		Register(domain.OriginRemote, remote).
		Register(domain.OriginLocal, local)
}

// Deploy implements Action.
func (d *Dispatcher) Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	if item.Origin == nil {
		return fmt.Errorf("item %s has no origin", item)
	}
	action, ok := d.actions[item.Origin.Kind()]
	if !ok {
		return fmt.Errorf("no deployment action for %s items", item.Origin.Kind())
	}

	d.logger.Debug("dispatching item", "item", item.Name, "type", item.Type, "origin", item.Origin.Kind())
	return action.Deploy(ctx, item, target)
}
