package source

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/fabric"
)

// ItemLister lists the items of a workspace. *fabric.Client implements it.
type ItemLister interface {
	ListItems(ctx context.Context, workspaceID string) ([]fabric.Item, error)
}

// RemoteWorkspaceSource enumerates the items of a platform workspace.
type RemoteWorkspaceSource struct {
	lister      ItemLister
	workspaceID string
	logger      *slog.Logger
	warnings    []domain.ClassificationWarning
}

// NewRemoteWorkspaceSource creates a source over one workspace.
func NewRemoteWorkspaceSource(lister ItemLister, workspaceID string, logger *slog.Logger) *RemoteWorkspaceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteWorkspaceSource{
		lister:      lister,
		workspaceID: workspaceID,
		logger:      logger.With("component", "remote_source", "workspace_id", workspaceID),
	}
}

// Describe implements ItemSource.
func (s *RemoteWorkspaceSource) Describe() string {
	return "workspace " + s.workspaceID
}

// Warnings returns the entries dropped by the last enumeration.
func (s *RemoteWorkspaceSource) Warnings() []domain.ClassificationWarning {
	return append([]domain.ClassificationWarning(nil), s.warnings...)
}

// Enumerate lists the workspace once. Records whose type is not deployable
// are dropped with a warning.
func (s *RemoteWorkspaceSource) Enumerate(ctx context.Context) ([]domain.Item, error) {
	s.warnings = nil
	if s.workspaceID == "" {
		return nil, domain.SourceUnavailable("Enumerate", "no source workspace configured", nil)
	}

	records, err := s.lister.ListItems(ctx, s.workspaceID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthentication):
			return nil, err
		case errors.Is(err, fabric.ErrUnauthorized):
			return nil, domain.AuthenticationError("Enumerate", "list items in "+s.workspaceID, err)
		default:
			return nil, domain.SourceUnavailable("Enumerate", "list items in "+s.workspaceID, err)
		}
	}

	items := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		itemType, ok := classify.ParseRemoteType(rec.Type)
		if !ok {
			s.warn(rec.DisplayName, "item type "+rec.Type+" is not deployable")
			continue
		}
		item, err := domain.NewItem(rec.DisplayName, itemType, domain.RemoteRef{WorkspaceID: s.workspaceID, ItemID: rec.ID})
		if err != nil {
			s.warn(rec.ID, err.Error())
			continue
		}
		items = append(items, item)
	}

	s.logger.Info("enumerated workspace items", "listed", len(records), "deployable", len(items))
	return items, nil
}

func (s *RemoteWorkspaceSource) warn(entry, reason string) {
	w := domain.ClassificationWarning{Entry: entry, Reason: reason}
	s.warnings = append(s.warnings, w)
	s.logger.Warn("skipping unclassified item", "entry", w.Entry, "reason", w.Reason)
}
