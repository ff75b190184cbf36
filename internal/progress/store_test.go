package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.json")
	clock := &fakeClock{now: time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)}
	return NewStore(path, clock, zap.NewNop()), path
}

func TestStore_ResumeRequeuesOnlyIncompleteDates(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{RunID: "run-1", WorkerCount: 3}, []string{"2021-03-01", "2021-03-02", "2021-03-03"}))
	require.NoError(t, store.MarkInProgress("2021-03-01", 1))
	require.NoError(t, store.MarkDone("2021-03-01", 4))
	require.NoError(t, store.MarkInProgress("2021-03-02", 2))

	// Simulate a crash: a fresh store loads the same file.
	reloaded := NewStore(path, &fakeClock{now: time.Now()}, zap.NewNop())
	require.NoError(t, reloaded.Load())

	pending := reloaded.PendingDates()
	require.Equal(t, []string{"2021-03-02", "2021-03-03"}, pending,
		"in_progress with no live owner is indistinguishable from crashed")

	snap := reloaded.Snapshot()
	done := snap.Dates["2021-03-01"]
	require.Equal(t, pipeline.TaskDone, done.Status)
	require.Equal(t, 4, done.PublicationsFound)
}

func TestStore_SnapshotFileIsAlwaysCompleteJSON(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{RunID: "run-2"}, []string{"2021-03-01"}))
	require.NoError(t, store.MarkInProgress("2021-03-01", 1))
	require.NoError(t, store.MarkDone("2021-03-01", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "run-2", snap.Metadata.RunID)
	require.Equal(t, 1, snap.Metadata.Totals.DatesDone)
	require.Equal(t, 2, snap.Metadata.Totals.PublicationsFound)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger after rename")
}

func TestStore_MarkRetryDemotesToPending(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{}, []string{"2021-03-01"}))
	require.NoError(t, store.MarkInProgress("2021-03-01", 1))

	n, err := store.MarkRetry("2021-03-01", "fetch timeout")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	task := store.Snapshot().Dates["2021-03-01"]
	require.Equal(t, pipeline.TaskPending, task.Status)
	require.Equal(t, "fetch timeout", task.Error)
	require.Zero(t, task.OwnerWorkerID)
}

func TestStore_MarkFailedIsTerminal(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{}, []string{"2021-03-01"}))
	require.NoError(t, store.MarkFailed("2021-03-01", "max retries exceeded"))

	snap := store.Snapshot()
	require.Equal(t, pipeline.TaskFailed, snap.Dates["2021-03-01"].Status)
	require.Equal(t, 1, snap.Metadata.Totals.DatesFailed)
	require.Empty(t, store.PendingDates(), "failed dates stay failed for manual re-run")
}

func TestStore_DemoteInProgressOnGracefulStop(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{}, []string{"2021-03-01", "2021-03-02"}))
	require.NoError(t, store.MarkInProgress("2021-03-01", 1))

	require.NoError(t, store.DemoteInProgress())

	reloaded := NewStore(path, &fakeClock{now: time.Now()}, zap.NewNop())
	require.NoError(t, reloaded.Load())
	for _, task := range reloaded.Snapshot().Dates {
		require.NotEqual(t, pipeline.TaskInProgress, task.Status,
			"no date may be persisted in_progress after a graceful stop")
	}
}

func TestStore_LoadMissingFileIsFreshRun(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "absent.json"), &fakeClock{now: time.Now()}, zap.NewNop())
	require.NoError(t, store.Load())
	require.Empty(t, store.Snapshot().Dates)
}

func TestStore_LoadCorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	store := NewStore(path, &fakeClock{now: time.Now()}, zap.NewNop())
	require.Error(t, store.Load())
}

func TestStore_ResetKeepsDoneDatesUntouched(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{}, []string{"2021-03-01"}))
	require.NoError(t, store.MarkInProgress("2021-03-01", 1))
	require.NoError(t, store.MarkDone("2021-03-01", 7))

	require.NoError(t, store.Reset(Metadata{RunID: "again"}, []string{"2021-03-01", "2021-03-02"}))

	snap := store.Snapshot()
	require.Equal(t, pipeline.TaskDone, snap.Dates["2021-03-01"].Status)
	require.Equal(t, 7, snap.Dates["2021-03-01"].PublicationsFound)
	require.Equal(t, pipeline.TaskPending, snap.Dates["2021-03-02"].Status)
}

func TestStore_ResetGivesFailedDatesFreshRetryBudget(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Reset(Metadata{}, []string{"2021-03-01", "2021-03-02"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.MarkInProgress("2021-03-01", 1))
		_, err := store.MarkRetry("2021-03-01", "fetch timeout")
		require.NoError(t, err)
	}
	require.NoError(t, store.MarkFailed("2021-03-01", "max retries exceeded"))
	require.NoError(t, store.MarkInProgress("2021-03-02", 1))
	_, err := store.MarkRetry("2021-03-02", "fetch timeout")
	require.NoError(t, err)

	require.NoError(t, store.Reset(Metadata{RunID: "again"}, []string{"2021-03-01", "2021-03-02"}))

	snap := store.Snapshot()
	requeued := snap.Dates["2021-03-01"]
	require.Equal(t, pipeline.TaskPending, requeued.Status)
	require.Zero(t, requeued.RetryCount, "a requeued failed date starts over")

	interrupted := snap.Dates["2021-03-02"]
	require.Equal(t, pipeline.TaskPending, interrupted.Status)
	require.Equal(t, 1, interrupted.RetryCount, "an interrupted date keeps its attempts")
}
