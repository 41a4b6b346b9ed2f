// Package summary aggregates per-item deployment outcomes into a report.
package summary

import "github.com/artpar/promoter/internal/core/domain"

// Summary owns the ordered outcomes of one run. Counts are derived on demand
// and never stored.
type Summary struct {
	outcomes []domain.DeploymentOutcome
}

// New returns an empty summary.
func New() *Summary {
	return &Summary{}
}

// Append records an outcome in processing order.
func (s *Summary) Append(o domain.DeploymentOutcome) {
	s.outcomes = append(s.outcomes, o)
}

// Len returns the number of recorded outcomes.
func (s *Summary) Len() int {
	return len(s.outcomes)
}

// Outcomes returns a copy of the recorded outcomes.
func (s *Summary) Outcomes() []domain.DeploymentOutcome {
	out := make([]domain.DeploymentOutcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Report derives the counts and details. Calling it repeatedly yields equal
// reports.
func (s *Summary) Report() Report {
	r := Report{
		Total:   len(s.outcomes),
		Details: make([]Detail, 0, len(s.outcomes)),
	}
	for _, o := range s.outcomes {
		switch o.Status() {
		case domain.OutcomeSuccess:
			r.SuccessCount++
		case domain.OutcomeFailed:
			r.FailedCount++
		case domain.OutcomeSkipped:
			r.SkippedCount++
		}
		r.Details = append(r.Details, detailOf(o))
	}
	return r
}
