package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{
			name: "database",
			err:  dbError("NewSQLiteStore", "failed to ping database", ErrConnectionFailed),
			want: "NewSQLiteStore: failed to ping database",
		},
		{
			name: "run",
			err:  runError("FinishRun", "run-1", "run not found", ErrNotFound),
			want: "FinishRun run run-1: run not found",
		},
		{
			name: "outcome",
			err: outcomeError("AppendOutcome",
				&OutcomeRecord{RunID: "r1", Seq: 3, ItemName: "Sales"},
				"run does not exist", ErrForeignKey),
			want: "AppendOutcome run r1 item #3 (Sales): run does not exist",
		},
		{
			name: "message falls back to cause",
			err:  runError("GetRun", "r1", "", errors.New("disk I/O error")),
			want: "GetRun run r1: disk I/O error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	err := outcomeError("AppendOutcome", &OutcomeRecord{RunID: "r1", Seq: 1}, "outcome already recorded", ErrDuplicateID)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.NotErrorIs(t, err, ErrNotFound)
}
