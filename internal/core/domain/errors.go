package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrSourceUnavailable means the enumeration root is missing or unreachable.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrAuthentication means the platform rejected the credential.
	ErrAuthentication = errors.New("authentication failed")

	// ErrProvisioning means the target workspace could not be ensured.
	ErrProvisioning = errors.New("provisioning failed")

	// ErrItemDeployment means a single item could not be deployed.
	ErrItemDeployment = errors.New("item deployment failed")
)

// Stage names the part of a run an error belongs to.
type Stage string

const (
	StageAuthentication Stage = "authentication"
	StageProvisioning   Stage = "provisioning"
	StageEnumeration    Stage = "enumeration"
	StageDeployment     Stage = "deployment"
)

// StageError wraps an error with the stage and operation it came from.
// errors.Is matches both the taxonomy sentinel and the underlying cause.
type StageError struct {
	Stage   Stage
	Kind    error  // One of the Err* sentinels above
	Op      string // Operation that failed (e.g., "EnsureWorkspace")
	Message string
	Err     error
}

func (e *StageError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// SourceUnavailable creates an enumeration-stage error.
func SourceUnavailable(op, message string, err error) *StageError {
	return &StageError{Stage: StageEnumeration, Kind: ErrSourceUnavailable, Op: op, Message: message, Err: err}
}

// AuthenticationError creates an authentication-stage error.
func AuthenticationError(op, message string, err error) *StageError {
	return &StageError{Stage: StageAuthentication, Kind: ErrAuthentication, Op: op, Message: message, Err: err}
}

// ProvisioningError creates a provisioning-stage error.
func ProvisioningError(op, message string, err error) *StageError {
	return &StageError{Stage: StageProvisioning, Kind: ErrProvisioning, Op: op, Message: message, Err: err}
}

// ItemDeploymentError creates an error for a single failed item. It never
// aborts a run.
func ItemDeploymentError(item Item, err error) *StageError {
	return &StageError{
		Stage:   StageDeployment,
		Kind:    ErrItemDeployment,
		Op:      "deploy",
		Message: item.String(),
		Err:     err,
	}
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// =============================================================================
// Classification Warning
// =============================================================================

// ClassificationWarning records a source entry that could not be mapped to an
// item type. It is logged and the entry dropped; it is not an error.
type ClassificationWarning struct {
	Entry  string
	Reason string
}

func (w ClassificationWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Entry, w.Reason)
}
