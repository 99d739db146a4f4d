package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterreel/internal/config"
	"chapterreel/internal/encoder"
	"chapterreel/internal/history"
	"chapterreel/internal/pipeline"
	"chapterreel/internal/services"
	"chapterreel/internal/testsupport"
)

type transitions struct {
	mu     sync.Mutex
	states []pipeline.State
}

func (r *transitions) observe(t pipeline.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		r.states = append(r.states, t.From)
	}
	r.states = append(r.states, t.To)
}

func (r *transitions) list() []pipeline.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.State(nil), r.states...)
}

func chapterIndex(inv encoder.Invocation) int {
	var idx int
	if _, err := fmt.Sscanf(inv.Label, "chapter %d", &idx); err != nil {
		return -1
	}
	return idx
}

func assertNoScratchResidue(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.ScratchDir)
	require.NoError(t, err)
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		t.Fatalf("scratch residue left behind: %s", entry.Name())
	}
}

func assertNoArtifact(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "output directory must stay empty on failure")
}

func TestRunTwoChaptersEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "demo",
		testsupport.Chapter{Title: "Intro", Duration: 5},
		testsupport.Chapter{Title: "Outro", Duration: 3, Music: true, MusicVolume: 0.4},
	)
	runner := &testsupport.FakeRunner{}
	rec := &transitions{}

	result, err := pipeline.New(cfg, runner, nil, pipeline.WithObserver(rec.observe)).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateDone, result.State)
	assert.Equal(t, "demo", result.ProjectID)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "video-demo.mp4"), result.ArtifactPath)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Segments, 2)

	content, err := os.ReadFile(result.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "chapter 0\nchapter 1\n", string(content))

	calls := runner.Calls()
	require.Len(t, calls, 3)
	assert.True(t, testsupport.IsConcat(calls[2]))
	assert.Contains(t, strings.Join(calls[1].Args, " "), "amix=inputs=2:duration=shortest")

	assert.Equal(t, []pipeline.State{
		pipeline.StateIdle,
		pipeline.StateLoading,
		pipeline.StateRendering,
		pipeline.StateAssembling,
		pipeline.StateCleaningUp,
		pipeline.StateDone,
	}, rec.list())
	assertNoScratchResidue(t, cfg)
}

func TestRunPreservesOrderUnderShuffledCompletion(t *testing.T) {
	const chapters = 6
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(chapters))
	fixtures := make([]testsupport.Chapter, chapters)
	for i := range fixtures {
		fixtures[i] = testsupport.Chapter{Duration: 1}
	}
	root := testsupport.WriteProject(t, "order", fixtures...)

	var mu sync.Mutex
	var completion []int
	runner := &testsupport.FakeRunner{
		Hook: func(_ context.Context, inv encoder.Invocation) error {
			idx := chapterIndex(inv)
			if idx < 0 {
				return nil
			}
			// Later chapters finish first.
			time.Sleep(time.Duration(chapters-idx) * 15 * time.Millisecond)
			mu.Lock()
			completion = append(completion, idx)
			mu.Unlock()
			return nil
		},
	}

	result, err := pipeline.New(cfg, runner, nil).Run(context.Background(), root)
	require.NoError(t, err)

	content, err := os.ReadFile(result.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "chapter 0\nchapter 1\nchapter 2\nchapter 3\nchapter 4\nchapter 5\n", string(content))
	for i, seg := range result.Segments {
		assert.Equal(t, i, seg.Index)
	}
	mu.Lock()
	assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5}, completion, "fixture should complete out of order")
	mu.Unlock()
}

func TestRunMissingImageFailsChapter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "demo",
		testsupport.Chapter{Title: "Intro", Duration: 2},
		testsupport.Chapter{Title: "Middle", Duration: 2, SkipImage: true},
		testsupport.Chapter{Title: "Outro", Duration: 2},
	)
	runner := &testsupport.FakeRunner{}
	rec := &transitions{}

	result, err := pipeline.New(cfg, runner, nil, pipeline.WithObserver(rec.observe)).Run(context.Background(), root)
	require.Error(t, err)

	var renderErr *services.RenderError
	require.True(t, errors.As(err, &renderErr), "expected RenderError, got %T", err)
	assert.Equal(t, 1, renderErr.Index)
	assert.Equal(t, "Middle", renderErr.Title)
	assert.Equal(t, services.ReasonMissingInput, renderErr.Reason)
	assert.Equal(t, pipeline.StateFailed, result.State)
	assert.Empty(t, result.ArtifactPath)

	states := rec.list()
	assert.Equal(t, []pipeline.State{pipeline.StateCleaningUp, pipeline.StateFailed}, states[len(states)-2:])
	for _, call := range runner.Calls() {
		assert.False(t, testsupport.IsConcat(call), "assembly must not run after a render failure")
	}
	assertNoArtifact(t, cfg)
	assertNoScratchResidue(t, cfg)
}

func TestRunEmptyChaptersIsManifestError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "empty")
	runner := &testsupport.FakeRunner{}
	rec := &transitions{}

	result, err := pipeline.New(cfg, runner, nil, pipeline.WithObserver(rec.observe)).Run(context.Background(), root)

	var manifestErr *services.ManifestError
	require.True(t, errors.As(err, &manifestErr), "expected ManifestError, got %v", err)
	assert.Equal(t, "chapters", manifestErr.Field)
	assert.Equal(t, pipeline.StateFailed, result.State)
	assert.Equal(t, []pipeline.State{pipeline.StateIdle, pipeline.StateLoading, pipeline.StateFailed}, rec.list())
	assert.Empty(t, runner.Calls())

	entries, err := os.ReadDir(cfg.Paths.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no scratch directory may be created before rendering")
}

func TestRunReportsLowestIndexGenuineFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(4))
	fixtures := make([]testsupport.Chapter, 4)
	for i := range fixtures {
		fixtures[i] = testsupport.Chapter{Duration: 1}
	}
	root := testsupport.WriteProject(t, "iso", fixtures...)

	runner := &testsupport.FakeRunner{
		Hook: func(ctx context.Context, inv encoder.Invocation) error {
			switch chapterIndex(inv) {
			case 0:
				// Only stops because a sibling failed.
				<-ctx.Done()
				return &encoder.RunError{Binary: "ffmpeg", Reason: services.ReasonCancelled, Err: ctx.Err()}
			case 2:
				time.Sleep(20 * time.Millisecond)
				return testsupport.FailWith("chapter two exploded")
			case 3:
				time.Sleep(40 * time.Millisecond)
				return testsupport.FailWith("chapter three exploded")
			}
			return nil
		},
	}

	_, err := pipeline.New(cfg, runner, nil).Run(context.Background(), root)
	var renderErr *services.RenderError
	require.True(t, errors.As(err, &renderErr), "expected RenderError, got %v", err)
	assert.Equal(t, 2, renderErr.Index)
	assert.Equal(t, services.ReasonEncoderFailed, renderErr.Reason)
	assert.Contains(t, err.Error(), "chapter two exploded")
	assertNoArtifact(t, cfg)
	assertNoScratchResidue(t, cfg)
}

func TestRunSequentialStopsAfterFirstFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "seq",
		testsupport.Chapter{Duration: 1},
		testsupport.Chapter{Duration: 1},
		testsupport.Chapter{Duration: 1},
	)
	runner := &testsupport.FakeRunner{
		Hook: func(_ context.Context, inv encoder.Invocation) error {
			if chapterIndex(inv) == 0 {
				return testsupport.FailWith("bad image")
			}
			return nil
		},
	}

	_, err := pipeline.New(cfg, runner, nil).Run(context.Background(), root)
	require.Error(t, err)
	assert.Len(t, runner.Calls(), 1, "later chapters must not start after a sequential failure")
}

func TestRunExternalCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "cancel", testsupport.Chapter{Duration: 1}, testsupport.Chapter{Duration: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &testsupport.FakeRunner{
		Hook: func(hctx context.Context, _ encoder.Invocation) error {
			cancel()
			<-hctx.Done()
			return &encoder.RunError{Binary: "ffmpeg", Reason: services.ReasonCancelled, Err: hctx.Err()}
		},
	}

	result, err := pipeline.New(cfg, runner, nil).Run(ctx, root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrCancelled), "expected cancellation, got %v", err)
	assert.Equal(t, pipeline.StateFailed, result.State)
	assertNoScratchResidue(t, cfg)
	assertNoArtifact(t, cfg)
}

func TestRunAssemblyFailureCleansUp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "join", testsupport.Chapter{Duration: 1}, testsupport.Chapter{Duration: 1})
	runner := &testsupport.FakeRunner{
		Hook: func(_ context.Context, inv encoder.Invocation) error {
			if testsupport.IsConcat(inv) {
				return testsupport.FailWith("Invalid data found when processing input")
			}
			return nil
		},
	}
	rec := &transitions{}

	_, err := pipeline.New(cfg, runner, nil, pipeline.WithObserver(rec.observe)).Run(context.Background(), root)
	var asmErr *services.AssemblyError
	require.True(t, errors.As(err, &asmErr), "expected AssemblyError, got %v", err)
	states := rec.list()
	assert.Equal(t, []pipeline.State{pipeline.StateAssembling, pipeline.StateCleaningUp, pipeline.StateFailed}, states[len(states)-3:])
	assertNoArtifact(t, cfg)
	assertNoScratchResidue(t, cfg)
}

func TestRunRefusesExistingArtifactBeforeRendering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := testsupport.WriteProject(t, "demo", testsupport.Chapter{Duration: 1})
	existing := filepath.Join(cfg.Paths.OutputDir, "video-demo.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))
	runner := &testsupport.FakeRunner{}

	_, err := pipeline.New(cfg, runner, nil).Run(context.Background(), root)
	var asmErr *services.AssemblyError
	require.True(t, errors.As(err, &asmErr))
	assert.Equal(t, services.ReasonArtifactExists, asmErr.Reason)
	assert.Empty(t, runner.Calls())
	content, _ := os.ReadFile(existing)
	assert.Equal(t, "keep", string(content))
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store, err := history.Open(cfg.HistoryPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ok := testsupport.WriteProject(t, "good", testsupport.Chapter{Duration: 1})
	bad := testsupport.WriteProject(t, "bad", testsupport.Chapter{Duration: 1}, testsupport.Chapter{Duration: 1, SkipImage: true})
	controller := pipeline.New(cfg, &testsupport.FakeRunner{}, nil, pipeline.WithRecorder(store))

	good, err := controller.Run(context.Background(), ok)
	require.NoError(t, err)
	_, err = controller.Run(context.Background(), bad)
	require.Error(t, err)

	run, err := store.Get(context.Background(), good.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSucceeded, run.Status)
	assert.Equal(t, good.ArtifactPath, run.ArtifactPath)

	runs, err := store.List(context.Background(), "bad", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.Equal(t, string(pipeline.StateRendering), runs[0].FailedStage)
	require.NotNil(t, runs[0].ChapterIndex)
	assert.Equal(t, 1, *runs[0].ChapterIndex)
}

func TestRunSerializesSameProject(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverwrite(true))
	root := testsupport.WriteProject(t, "shared", testsupport.Chapter{Duration: 1})

	var inFlight, maxInFlight int
	var mu sync.Mutex
	runner := &testsupport.FakeRunner{
		Hook: func(context.Context, encoder.Invocation) error {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		},
	}
	controller := pipeline.New(cfg, runner, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = controller.Run(context.Background(), root)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, maxInFlight, "runs of the same project must not overlap")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, pipeline.CanTransition(pipeline.StateIdle, pipeline.StateLoading))
	assert.True(t, pipeline.CanTransition(pipeline.StateRendering, pipeline.StateCleaningUp))
	assert.False(t, pipeline.CanTransition(pipeline.StateLoading, pipeline.StateAssembling))
	assert.False(t, pipeline.CanTransition(pipeline.StateDone, pipeline.StateFailed))
	assert.True(t, pipeline.StateFailed.Terminal())
}
