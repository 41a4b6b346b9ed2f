package domain

// =============================================================================
// Outcome Status
// =============================================================================

// OutcomeStatus classifies the result of attempting one item.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// SkipReasonFiltered is the detail recorded for items excluded by a type filter.
const SkipReasonFiltered = "filtered by type"

// =============================================================================
// Deployment Outcome
// =============================================================================

// DeploymentOutcome is the result of attempting one item. Fields are unexported
// so an outcome cannot change once created.
type DeploymentOutcome struct {
	item   Item
	status OutcomeStatus
	detail string
}

// Succeeded records a successful deployment.
func Succeeded(item Item) DeploymentOutcome {
	return DeploymentOutcome{item: item, status: OutcomeSuccess}
}

// Failed records a failed deployment with the error message as detail.
func Failed(item Item, err error) DeploymentOutcome {
	detail := "unknown error"
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	return DeploymentOutcome{item: item, status: OutcomeFailed, detail: detail}
}

// Skipped records an item that was not attempted.
func Skipped(item Item, reason string) DeploymentOutcome {
	if reason == "" {
		reason = "skipped"
	}
	return DeploymentOutcome{item: item, status: OutcomeSkipped, detail: reason}
}

func (o DeploymentOutcome) Item() Item            { return o.item }
func (o DeploymentOutcome) Status() OutcomeStatus { return o.status }
func (o DeploymentOutcome) Detail() string        { return o.detail }
