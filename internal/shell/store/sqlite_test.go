package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestRun(t *testing.T, store Store, startedAt time.Time) *Run {
	t.Helper()
	run := &Run{
		ID:         NewRunID(),
		Source:     "directory /repo",
		SourceMode: "local",
		TargetName: "Prod",
		StartedAt:  startedAt,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

func testOutcome(t *testing.T, name string, status domain.OutcomeStatus) domain.DeploymentOutcome {
	t.Helper()
	item, err := domain.NewItem(name, domain.ItemTypeReport, domain.LocalRef{Path: "/repo/Development/" + name + ".Report"})
	require.NoError(t, err)
	switch status {
	case domain.OutcomeFailed:
		return domain.Failed(item, errors.New("status 500"))
	case domain.OutcomeSkipped:
		return domain.Skipped(item, domain.SkipReasonFiltered)
	default:
		return domain.Succeeded(item)
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestCreateRun_Defaults(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Time{})

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, RunRunning, got.Status)
	assert.Equal(t, "all", got.TypeFilter)
	assert.False(t, got.StartedAt.IsZero())
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, "directory /repo", got.Source)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())

	err := store.CreateRun(context.Background(), &Run{ID: run.ID, Source: "again"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateRun_MissingID(t *testing.T) {
	store := setupTestStore(t)
	err := store.CreateRun(context.Background(), &Run{Source: "x"})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "GetRun run nope: run not found", storeErr.Error())
}

func TestFinishRun_Completed(t *testing.T) {
	store := setupTestStore(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := createTestRun(t, store, started)

	sum := summary.New()
	sum.Append(testOutcome(t, "A", domain.OutcomeSuccess))
	sum.Append(testOutcome(t, "B", domain.OutcomeFailed))
	sum.Append(testOutcome(t, "C", domain.OutcomeSkipped))
	run.TargetID = "ws-prod"
	run.Complete(sum.Report(), started.Add(90*time.Second))

	require.NoError(t, store.FinishRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, "ws-prod", got.TargetID)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestFinishRun_Aborted(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())

	run.Abort(domain.ProvisioningError("EnsureWorkspace", "create workspace Prod", errors.New("capacity not found")), time.Now())
	require.NoError(t, store.FinishRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunAborted, got.Status)
	assert.Equal(t, "provisioning", got.Stage)
	assert.Contains(t, got.Error, "capacity not found")
}

func TestFinishRun_NotFound(t *testing.T) {
	store := setupTestStore(t)
	err := store.FinishRun(context.Background(), &Run{ID: "missing", Status: RunSucceeded})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := createTestRun(t, store, base)
	second := createTestRun(t, store, base.Add(time.Hour))
	third := createTestRun(t, store, base.Add(2*time.Hour))

	runs, err := store.ListRuns(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = store.ListRuns(context.Background(), ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.ID, runs[0].ID)
}

func TestListRuns_ByStatus(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())
	createTestRun(t, store, time.Now())

	run.Abort(domain.SourceUnavailable("Enumerate", "root not found", nil), time.Now())
	require.NoError(t, store.FinishRun(context.Background(), run))

	runs, err := store.ListRuns(context.Background(), ListOptions{Status: RunAborted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "enumeration", runs[0].Stage)
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, 100, ListOptions{}.Normalize().Limit)
	assert.Equal(t, 1000, ListOptions{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 0, ListOptions{Offset: -3}.Normalize().Offset)
}

// =============================================================================
// Outcome Tests
// =============================================================================

func TestAppendOutcome_RoundTripInOrder(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())

	require.NoError(t, store.AppendOutcome(context.Background(), NewOutcomeRecord(run.ID, 2, testOutcome(t, "B", domain.OutcomeFailed))))
	require.NoError(t, store.AppendOutcome(context.Background(), NewOutcomeRecord(run.ID, 1, testOutcome(t, "A", domain.OutcomeSuccess))))

	got, err := store.ListOutcomes(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ItemName)
	assert.Equal(t, "B", got[1].ItemName)
	assert.Equal(t, "failed", got[1].Status)
	assert.Equal(t, "status 500", got[1].Detail)
	assert.Equal(t, "Report", got[1].ItemType)
	assert.Equal(t, "/repo/Development/B.Report", got[1].Origin)
}

func TestAppendOutcome_UnknownRun(t *testing.T) {
	store := setupTestStore(t)
	err := store.AppendOutcome(context.Background(), NewOutcomeRecord("missing", 1, testOutcome(t, "A", domain.OutcomeSuccess)))
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestAppendOutcome_DuplicateSeq(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())
	rec := NewOutcomeRecord(run.ID, 1, testOutcome(t, "A", domain.OutcomeSuccess))

	require.NoError(t, store.AppendOutcome(context.Background(), rec))
	err := store.AppendOutcome(context.Background(), rec)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.EqualError(t, err, "AppendOutcome run "+run.ID+" item #1 (A): outcome already recorded")
}

func TestListOutcomes_Empty(t *testing.T) {
	store := setupTestStore(t)
	got, err := store.ListOutcomes(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	id := NewRunID()

	err := store.WithTx(context.Background(), func(tx Store) error {
		if err := tx.CreateRun(context.Background(), &Run{ID: id, Source: "s"}); err != nil {
			return err
		}
		return tx.AppendOutcome(context.Background(), NewOutcomeRecord(id, 1, testOutcome(t, "A", domain.OutcomeSuccess)))
	})
	require.NoError(t, err)

	outcomes, err := store.ListOutcomes(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	id := NewRunID()
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), func(tx Store) error {
		require.NoError(t, tx.CreateRun(context.Background(), &Run{ID: id, Source: "s"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetRun(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecorder_PersistsOutcomes(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, time.Now())
	rec := NewRecorder(context.Background(), store, run.ID, nil)

	rec.OnOutcome(1, 2, testOutcome(t, "A", domain.OutcomeSuccess))
	rec.OnOutcome(2, 2, testOutcome(t, "B", domain.OutcomeSkipped))
	require.NoError(t, rec.Err())

	got, err := store.ListOutcomes(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "filtered by type", got[1].Detail)
}

func TestRecorder_CollectsErrors(t *testing.T) {
	store := setupTestStore(t)
	rec := NewRecorder(context.Background(), store, "missing-run", nil)

	rec.OnOutcome(1, 1, testOutcome(t, "A", domain.OutcomeSuccess))
	assert.ErrorIs(t, rec.Err(), ErrForeignKey)
}

func TestNewRunID_Unique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
	assert.Len(t, NewRunID(), 36)
}
