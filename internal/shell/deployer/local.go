package deployer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/fabric"
)

// LocalPackageAction creates an item from the definition file in its folder.
type LocalPackageAction struct {
	api    ItemAPI
	fs     afero.Fs
	logger *slog.Logger
}

// NewLocalPackageAction creates the action. A nil fs uses the operating
// system filesystem.
func NewLocalPackageAction(api ItemAPI, fsys afero.Fs, logger *slog.Logger) *LocalPackageAction {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalPackageAction{
		api:    api,
		fs:     fsys,
		logger: logger.With("component", "local_package"),
	}
}

// Deploy implements Action.
func (a *LocalPackageAction) Deploy(ctx context.Context, item domain.Item, target domain.WorkspaceHandle) error {
	ref, ok := item.Origin.(domain.LocalRef)
	if !ok {
		return fmt.Errorf("local packaging needs an item folder, got %s origin", item.Origin.Kind())
	}

	part, err := a.definitionPart(item, ref.Path)
	if err != nil {
		return err
	}

	req := fabric.CreateItemRequest{
		DisplayName: item.Name,
		Type:        classify.RemoteTypeName(item.Type),
		Definition:  &fabric.Definition{Parts: []fabric.DefinitionPart{part}},
	}
	if err := a.api.CreateItem(ctx, target.ID, req); err != nil {
		return err
	}

	a.logger.Info("created item from definition",
		"item", item.Name,
		"type", item.Type,
		"definition", part.Path,
		"target_workspace_id", target.ID,
	)
	return nil
}

// definitionPart reads the first definition candidate present in dir.
func (a *LocalPackageAction) definitionPart(item domain.Item, dir string) (fabric.DefinitionPart, error) {
	candidates := classify.DefinitionCandidates(item)
	if len(candidates) == 0 {
		return fabric.DefinitionPart{}, fmt.Errorf("no definition file known for type %s", item.Type)
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		exists, err := afero.Exists(a.fs, path)
		if err != nil {
			return fabric.DefinitionPart{}, fmt.Errorf("check %s: %w", path, err)
		}
		if !exists {
			continue
		}

		data, err := afero.ReadFile(a.fs, path)
		if err != nil {
			return fabric.DefinitionPart{}, fmt.Errorf("read %s: %w", path, err)
		}
		return fabric.DefinitionPart{
			Path:        name,
			Payload:     base64.StdEncoding.EncodeToString(data),
			PayloadType: fabric.PayloadTypeInlineBase64,
		}, nil
	}

	return fabric.DefinitionPart{}, fmt.Errorf("definition file not found (%s) in %s", strings.Join(candidates, ", "), dir)
}
