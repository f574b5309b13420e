package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finresearch/domain/research"
	"finresearch/internal/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedRun(t *testing.T, id, question string, started time.Time) *research.RunState {
	t.Helper()
	req, err := research.NewResearchRequest(question)
	require.NoError(t, err)

	state := research.NewRunState(id, req, started)
	state.ApplyPlan(research.NewPlan([]research.SubQuestion{
		{Question: "MSFT price now", Capability: research.CapabilityMarket},
	}))
	state.Enter(research.StateMarket)
	require.NoError(t, state.Merge(research.StageDelta{
		Capability: research.CapabilityMarket,
		Records: []research.EvidenceRecord{{
			Question:   "MSFT price now",
			Capability: research.CapabilityMarket,
			Answer:     "MSFT trades at $415.50.",
		}},
	}))
	state.Enter(research.StateSynthesize)
	state.Enter(research.StateDone)
	state.Complete("Microsoft trades at $415.50.", started.Add(1500*time.Millisecond))
	return state
}

func TestRunStoreRoundTrip(t *testing.T) {
	store := NewRunStore(filepath.Join(t.TempDir(), "runs"))
	ctx := context.Background()
	started := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	state := completedRun(t, "run-1", "What is MSFT trading at?", started)
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, state.RunID, got.RunID)
	assert.Equal(t, state.FinalAnswer, got.FinalAnswer)
	assert.Equal(t, state.Path, got.Path)
	assert.Equal(t, int64(1500), got.DurationMs)
	if diff := cmp.Diff(state.EvidenceLedger.Records(), got.EvidenceLedger.Records()); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStoreListRecentNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := NewRunStore(dir)
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, completedRun(t, id, "q "+id, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "9999-broken.json"), []byte("{"), 0644))

	runs, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, []string{"market"}, runs[0].Capabilities)
	assert.Equal(t, 1, runs[0].RecordCount)
}

func TestRunStoreOverwritesSameRun(t *testing.T) {
	dir := t.TempDir()
	store := NewRunStore(dir)
	ctx := context.Background()
	started := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	state := completedRun(t, "same", "q", started)
	require.NoError(t, store.Save(ctx, state))
	state.FinalAnswer = "revised"
	require.NoError(t, store.Save(ctx, state))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := store.Get(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "revised", got.FinalAnswer)
}

func TestRunStoreNotFoundAndInvalidIDs(t *testing.T) {
	store := NewRunStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = store.Get(ctx, "../etc/passwd")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	bad := completedRun(t, "x/y", "q", time.Now())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(store.Save(ctx, bad)))

	runs, err := NewRunStore(filepath.Join(t.TempDir(), "absent")).ListRecent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
