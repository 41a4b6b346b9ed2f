package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/promoter/internal/core/domain"
)

// RemoteCopyAction copies a workspace item into the target workspace.
type RemoteCopyAction struct {
	api        ItemAPI
	nameSuffix string
	logger     *slog.Logger
}

// NewRemoteCopyAction creates the action. nameSuffix is appended to the
// display name of every copy; empty keeps names unchanged.
func NewRemoteCopyAction(api ItemAPI, nameSuffix string, logger *slog.Logger) *RemoteCopyAction {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteCopyAction{
		api:        api,
		nameSuffix: nameSuffix,
		logger:     logger.With("component", "remote_copy"),
	}
}

// Deploy implements Action.
func (a *RemoteCopyAction) Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	ref, ok := item.Origin.(domain.RemoteRef)
	if !ok {
		return fmt.Errorf("remote copy needs a workspace item, got %s origin", item.Origin.Kind())
	}

	name := item.Name + a.nameSuffix
	copied, err := a.api.CopyItem(ctx, ref.WorkspaceID, ref.ItemID, target.ID, name)
	if err != nil {
		return err
	}

	a.logger.Info("copied item",
		"item", item.Name,
		"type", item.Type,
		"source_item_id", ref.ItemID,
		"target_item_id", copied.ID,
		"target_workspace_id", target.ID,
	)
	return nil
}
