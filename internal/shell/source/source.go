// Package source enumerates deployable items from a remote workspace, a local
// directory or a git checkout.
// This is part of the Imperative Shell - it performs the I/O needed to build
// the item list the orchestrator folds over.
package source

import (
	"context"

	"github.com/artpar/promoter/internal/core/domain"
)

// ItemSource yields the items to deploy.
//
// Enumerate either returns the complete list or an error; it never returns a
// partial list together with an error. A reachable source with no items is
// an empty list, not an error.
type ItemSource interface {
	Enumerate(ctx context.Context) ([]domain.Item, error)
	// Describe names the source for logs and reports.
	Describe() string
}

// WarningReporter is implemented by sources that drop entries they cannot
// classify.
type WarningReporter interface {
	Warnings() []domain.ClassificationWarning
}

// Warnings returns the classification warnings of src, if it records any.
func Warnings(src ItemSource) []domain.ClassificationWarning {
	if wr, ok := src.(WarningReporter); ok {
		return wr.Warnings()
	}
	return nil
}
