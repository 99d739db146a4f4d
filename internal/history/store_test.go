package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterreel/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordStart(ctx, "run-1", "demo", "/projects/demo", 2, start))

	run, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusRunning, run.Status)
	assert.True(t, run.FinishedAt.IsZero())
	assert.Equal(t, 2, run.Chapters)

	chapter := 1
	require.NoError(t, store.RecordFinish(ctx, "run-1", history.Outcome{
		Status:       history.StatusFailed,
		FailedStage:  "rendering",
		ChapterIndex: &chapter,
		Error:        "render chapter 1: encoder_failed",
		Warnings:     1,
	}, start.Add(90*time.Second)))

	run, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, run.Status)
	assert.Equal(t, "rendering", run.FailedStage)
	require.NotNil(t, run.ChapterIndex)
	assert.Equal(t, 1, *run.ChapterIndex)
	assert.Equal(t, 1, run.Warnings)
	assert.Empty(t, run.ArtifactPath)
	assert.Equal(t, 90*time.Second, run.Elapsed(time.Now()))
}

func TestListNewestFirstWithProjectFilter(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordStart(ctx, "a", "alpha", "/p/a", 1, base))
	require.NoError(t, store.RecordStart(ctx, "b", "beta", "/p/b", 1, base.Add(time.Minute)))
	require.NoError(t, store.RecordStart(ctx, "c", "alpha", "/p/a", 1, base.Add(2*time.Minute)))
	require.NoError(t, store.RecordFinish(ctx, "c", history.Outcome{Status: history.StatusSucceeded, ArtifactPath: "/out/video-alpha.mp4"}, base.Add(3*time.Minute)))

	all, err := store.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.Equal(t, "/out/video-alpha.mp4", all[0].ArtifactPath)

	alpha, err := store.List(ctx, "alpha", 1)
	require.NoError(t, err)
	require.Len(t, alpha, 1)
	assert.Equal(t, "c", alpha[0].RunID)
}

func TestRecordFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.RecordFinish(context.Background(), "missing", history.Outcome{Status: history.StatusSucceeded}, time.Now())
	assert.True(t, errors.Is(err, history.ErrNotFound))

	_, err = store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, history.ErrNotFound))
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordStart(context.Background(), "r", "demo", "/p", 1, time.Now()))
	require.NoError(t, store.Close())

	store, err = history.Open(path)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
