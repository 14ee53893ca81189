package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), ".pubsync", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.StartRun(ctx, "run-1", "sync", start))
	require.NoError(t, l.RecordAttempt(ctx, Attempt{
		RunID: "run-1", TitleKey: "foo", Title: "Foo", Strategy: "direct",
		URL: "https://x.org/foo.pdf", Outcome: "rejected", Reason: "too_small", At: start,
	}))
	require.NoError(t, l.RecordAttempt(ctx, Attempt{
		RunID: "run-1", TitleKey: "foo", Title: "Foo", Strategy: "page-scan",
		URL: "https://x.org/real.pdf", Outcome: "downloaded", At: start.Add(time.Second),
	}))

	counts := RunCounts{Found: 3, Known: 2, Added: 1, Downloaded: 1}
	require.NoError(t, l.FinishRun(ctx, "run-1", nil, counts, start.Add(time.Minute)))

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ok", runs[0].Status)
	assert.Equal(t, counts, runs[0].Counts)
	assert.True(t, runs[0].StartedAt.Equal(start))
	assert.True(t, runs[0].FinishedAt.Equal(start.Add(time.Minute)))

	attempts, err := l.Attempts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "direct", attempts[0].Strategy)
	assert.Equal(t, "too_small", attempts[0].Reason)
	assert.Equal(t, "downloaded", attempts[1].Outcome)
}

func TestLedger_FailedRun(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	now := time.Now()

	require.NoError(t, l.StartRun(ctx, "run-x", "sync", now))
	require.NoError(t, l.FinishRun(ctx, "run-x", errors.New("listing empty"), RunCounts{}, now))

	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "listing empty", runs[0].Error)
}

func TestLedger_RunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.StartRun(ctx, id, "sync", base.Add(time.Duration(i)*time.Hour)))
	}

	runs, err := l.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "running", runs[0].Status)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	l := openTestLedger(t)
	err := l.FinishRun(context.Background(), "missing", nil, RunCounts{}, time.Now())
	assert.ErrorContains(t, err, "not found")
}
