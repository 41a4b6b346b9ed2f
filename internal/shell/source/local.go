package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
)

// DevelopmentDir is the folder under the root that holds item folders.
const DevelopmentDir = "Development"

// LocalDirectorySource enumerates item folders under <root>/Development.
type LocalDirectorySource struct {
	fs       afero.Fs
	root     string
	logger   *slog.Logger
	warnings []domain.ClassificationWarning
}

// NewLocalDirectorySource creates a source over root. A nil fs uses the
// operating system filesystem.
func NewLocalDirectorySource(fsys afero.Fs, root string, logger *slog.Logger) *LocalDirectorySource {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDirectorySource{
		fs:     fsys,
		root:   root,
		logger: logger.With("component", "local_source", "root", root),
	}
}

// Describe implements ItemSource.
func (s *LocalDirectorySource) Describe() string {
	return "directory " + s.root
}

// Root returns the configured root directory.
func (s *LocalDirectorySource) Root() string {
	return s.root
}

// Warnings returns the entries dropped by the last enumeration.
func (s *LocalDirectorySource) Warnings() []domain.ClassificationWarning {
	return append([]domain.ClassificationWarning(nil), s.warnings...)
}

// Enumerate returns one item per immediate subdirectory of Development whose
// name ends in a known type suffix, sorted by folder name. Plain files are
// ignored. Duplicate item names are passed through.
func (s *LocalDirectorySource) Enumerate(ctx context.Context) ([]domain.Item, error) {
	s.warnings = nil

	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, domain.SourceUnavailable("Enumerate", "root not found", err)
	}
	dev := filepath.Join(root, DevelopmentDir)

	info, err := s.fs.Stat(dev)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.SourceUnavailable("Enumerate", "root not found", err)
		}
		return nil, domain.SourceUnavailable("Enumerate", "stat "+dev, err)
	}
	if !info.IsDir() {
		return nil, domain.SourceUnavailable("Enumerate", "root not found", errors.New(dev+" is not a directory"))
	}

	// afero.ReadDir sorts entries by name.
	entries, err := afero.ReadDir(s.fs, dev)
	if err != nil {
		return nil, domain.SourceUnavailable("Enumerate", "read "+dev, err)
	}

	var items []domain.Item
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		name, itemType, ok := classify.ParseFolderName(entry.Name())
		if !ok {
			s.warn(entry.Name(), "no recognized type suffix")
			continue
		}
		item, err := domain.NewItem(name, itemType, domain.LocalRef{Path: filepath.Join(dev, entry.Name())})
		if err != nil {
			s.warn(entry.Name(), err.Error())
			continue
		}
		s.logger.Debug("found item folder", "folder", entry.Name(), "type", itemType)
		items = append(items, item)
	}

	if items == nil {
		items = []domain.Item{}
	}
	s.logger.Info("enumerated item folders", "entries", len(entries), "items", len(items), "warnings", len(s.warnings))
	return items, nil
}

func (s *LocalDirectorySource) warn(entry, reason string) {
	w := domain.ClassificationWarning{Entry: entry, Reason: reason}
	s.warnings = append(s.warnings, w)
	s.logger.Warn("skipping unclassified folder", "entry", w.Entry, "reason", w.Reason)
}
