// Package store persists deployment run history.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when a run is not found.
	ErrNotFound = errors.New("run not found")

	// ErrDuplicateID is returned when a run id or outcome sequence is reused.
	ErrDuplicateID = errors.New("already recorded")

	// ErrForeignKey is returned when an outcome references an unknown run.
	ErrForeignKey = errors.New("run does not exist")

	// ErrConnectionFailed is returned when the history database cannot be reached.
	ErrConnectionFailed = errors.New("history database unavailable")

	// ErrMigrationFailed is returned when the history schema cannot be applied.
	ErrMigrationFailed = errors.New("history schema migration failed")

	// ErrInvalidData is returned when a record is missing required fields.
	ErrInvalidData = errors.New("invalid history record")

	// ErrTxFailed is returned when a transaction cannot begin, commit or roll back.
	ErrTxFailed = errors.New("history transaction failed")
)

// StoreError locates a history failure by run and, for outcomes, by the
// position and name of the item within the run.
type StoreError struct {
	Op      string // Store method that failed (e.g., "AppendOutcome")
	RunID   string
	Seq     int    // 1-based outcome position; zero for run-level errors
	Item    string // Item name of the outcome, if any
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.RunID != "" {
		fmt.Fprintf(&b, " run %s", e.RunID)
	}
	if e.Seq > 0 {
		fmt.Fprintf(&b, " item #%d", e.Seq)
		if e.Item != "" {
			fmt.Fprintf(&b, " (%s)", e.Item)
		}
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	b.WriteString(": ")
	b.WriteString(msg)
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// dbError reports a failure of the database itself.
func dbError(op, message string, err error) *StoreError {
	return &StoreError{Op: op, Message: message, Err: err}
}

// runError reports a failure on one run row.
func runError(op, runID, message string, err error) *StoreError {
	return &StoreError{Op: op, RunID: runID, Message: message, Err: err}
}

// outcomeError reports a failure on one outcome of a run.
func outcomeError(op string, rec *OutcomeRecord, message string, err error) *StoreError {
	return &StoreError{Op: op, RunID: rec.RunID, Seq: rec.Seq, Item: rec.ItemName, Message: message, Err: err}
}
