package scanlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := openTestStore(t)

	// A freshly migrated store lists no runs.
	runs, err := store.ListScans(10)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not fail on already-applied migrations.
	store, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestRecordAndListRoundTrip(t *testing.T) {
	store := openTestStore(t)

	run := &ScanRun{
		RunID:            NewRunID(),
		StartedUnixNanos: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
		Mode:             "auto",
		Speed:            "normal",
		FocusRange:       "normal",
		Outcome:          "focused",
		PeakDioptre:      4.07,
		LensSetting:      575,
		Frames:           73,
		Samples: []Sample{
			{Frame: 0, Lens: 0, Contrast: 324},
			{Frame: 5, Lens: 1, Contrast: 477},
		},
	}
	require.NoError(t, store.RecordScan(run))

	runs, err := store.ListScans(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	if diff := cmp.Diff(*run, runs[0]); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestListScansOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)

	for i, nanos := range []int64{100, 300, 200} {
		require.NoError(t, store.RecordScan(&ScanRun{
			StartedUnixNanos: nanos,
			Mode:             "auto",
			Speed:            "normal",
			FocusRange:       "normal",
			Outcome:          "focused",
			Frames:           i,
		}))
	}

	runs, err := store.ListScans(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, int64(300), runs[0].StartedUnixNanos)
	require.Equal(t, int64(200), runs[1].StartedUnixNanos)
	require.Equal(t, int64(100), runs[2].StartedUnixNanos)
}

func TestRecordScanAssignsRunID(t *testing.T) {
	store := openTestStore(t)

	run := &ScanRun{Mode: "manual", Speed: "normal", FocusRange: "normal", Outcome: "idle"}
	require.NoError(t, store.RecordScan(run))
	require.NotEmpty(t, run.RunID)
}
