package summary

import "github.com/artpar/promoter/internal/core/domain"

// Report is the externally meaningful result of a run.
type Report struct {
	SuccessCount int      `json:"success_count" yaml:"success_count"`
	FailedCount  int      `json:"failed_count" yaml:"failed_count"`
	SkippedCount int      `json:"skipped_count" yaml:"skipped_count"`
	Total        int      `json:"total" yaml:"total"`
	Details      []Detail `json:"details" yaml:"details"`
}

// Detail is one outcome flattened for output.
type Detail struct {
	Name   string               `json:"name" yaml:"name"`
	Type   domain.ItemType      `json:"type" yaml:"type"`
	Origin string               `json:"origin" yaml:"origin"`
	Status domain.OutcomeStatus `json:"status" yaml:"status"`
	Detail string               `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func detailOf(o domain.DeploymentOutcome) Detail {
	item := o.Item()
	d := Detail{
		Name:   item.Name,
		Type:   item.Type,
		Status: o.Status(),
		Detail: o.Detail(),
	}
	if item.Origin != nil {
		d.Origin = item.Origin.String()
	}
	return d
}

// HasFailures reports whether any item failed.
func (r Report) HasFailures() bool {
	return r.FailedCount > 0
}

// Attempted is the number of items a deployment action was dispatched for.
func (r Report) Attempted() int {
	return r.SuccessCount + r.FailedCount
}

// ByStatus returns the details with the given status, in order.
func (r Report) ByStatus(status domain.OutcomeStatus) []Detail {
	var out []Detail
	for _, d := range r.Details {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out
}
