package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/afero"

	"github.com/artpar/promoter/internal/core/domain"
)

// DefaultBranch is the branch cloned when none is configured.
const DefaultBranch = "Dev-Branch"

// CloneFunc checks out a repository into dir.
type CloneFunc func(ctx context.Context, dir string, opts *git.CloneOptions) error

// PlainClone is the CloneFunc backed by go-git.
func PlainClone(ctx context.Context, dir string, opts *git.CloneOptions) error {
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}

// GitSource clones a branch into a temporary directory and enumerates it like
// a LocalDirectorySource. Call Close to remove the checkout.
type GitSource struct {
	url    string
	branch string
	clone  CloneFunc
	logger *slog.Logger

	dir   string
	local *LocalDirectorySource
}

// NewGitSource creates a source for url at branch. A nil clone uses PlainClone.
func NewGitSource(url, branch string, clone CloneFunc, logger *slog.Logger) *GitSource {
	if branch == "" {
		branch = DefaultBranch
	}
	if clone == nil {
		clone = PlainClone
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{
		url:    url,
		branch: branch,
		clone:  clone,
		logger: logger.With("component", "git_source", "repo", url, "branch", branch),
	}
}

// Describe implements ItemSource.
func (s *GitSource) Describe() string {
	return fmt.Sprintf("git %s@%s", s.url, s.branch)
}

// Dir returns the checkout directory, empty before the first Enumerate.
func (s *GitSource) Dir() string {
	return s.dir
}

// Warnings returns the entries dropped by the last enumeration.
func (s *GitSource) Warnings() []domain.ClassificationWarning {
	if s.local == nil {
		return nil
	}
	return s.local.Warnings()
}

// Enumerate clones the branch on first use, then enumerates the checkout.
func (s *GitSource) Enumerate(ctx context.Context) ([]domain.Item, error) {
	if s.url == "" {
		return nil, domain.SourceUnavailable("Enumerate", "no repository configured", nil)
	}

	if s.local == nil {
		dir, err := os.MkdirTemp("", "promoter-checkout-*")
		if err != nil {
			return nil, domain.SourceUnavailable("Enumerate", "create checkout directory", err)
		}

		s.logger.Info("cloning repository", "dir", dir)
		if err := s.clone(ctx, dir, CloneOptions(s.url, s.branch)); err != nil {
			_ = os.RemoveAll(dir)
			return nil, domain.SourceUnavailable("Enumerate", fmt.Sprintf("clone %s@%s", s.url, s.branch), err)
		}

		s.dir = dir
		s.local = NewLocalDirectorySource(afero.NewOsFs(), dir, s.logger)
	}
	return s.local.Enumerate(ctx)
}

// Close removes the checkout.
func (s *GitSource) Close() error {
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	s.local = nil
	return os.RemoveAll(dir)
}

// CloneOptions returns a shallow single-branch clone of url at branch.
func CloneOptions(url, branch string) *git.CloneOptions {
	return &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	}
}
