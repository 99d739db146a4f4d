package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chapterreel/internal/assemble"
	"chapterreel/internal/config"
	"chapterreel/internal/encoder"
	"chapterreel/internal/history"
	"chapterreel/internal/logging"
	"chapterreel/internal/manifest"
	"chapterreel/internal/render"
	"chapterreel/internal/scratch"
	"chapterreel/internal/services"
)

// ChapterRenderer renders one chapter.
type ChapterRenderer interface {
	Render(ctx context.Context, job render.Job) (render.Segment, error)
}

// ArtifactAssembler joins segments into the final artifact.
type ArtifactAssembler interface {
	CheckTarget(projectID string) error
	Assemble(ctx context.Context, projectID string, segments []string, scratchDir string) (string, error)
}

// Recorder persists run outcomes.
type Recorder interface {
	RecordStart(ctx context.Context, runID, projectID, root string, chapters int, startedAt time.Time) error
	RecordFinish(ctx context.Context, runID string, outcome history.Outcome, finishedAt time.Time) error
}

// Result describes a finished run.
type Result struct {
	RunID        string
	ProjectID    string
	State        State
	ArtifactPath string
	Segments     []render.Segment
	Warnings     []*services.CleanupWarning
	Elapsed      time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers a transition observer.
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithRecorder enables run history.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithRenderer replaces the chapter renderer.
func WithRenderer(r ChapterRenderer) Option {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithAssembler replaces the assembler.
func WithAssembler(a ArtifactAssembler) Option {
	return func(c *Controller) {
		if a != nil {
			c.assembler = a
		}
	}
}

// Controller runs the load, render, assemble, cleanup sequence.
type Controller struct {
	cfg       *config.Config
	renderer  ChapterRenderer
	assembler ArtifactAssembler
	recorder  Recorder
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Controller backed by runner for every encoder invocation.
func New(cfg *config.Config, runner encoder.Runner, logger *slog.Logger, opts ...Option) *Controller {
	logger = logging.NewComponentLogger(logger, "pipeline")
	c := &Controller{
		cfg:       cfg,
		renderer:  render.New(cfg, runner, logger),
		assembler: assemble.New(cfg, runner, logger),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run carries per-run state through the stages.
type run struct {
	id        string
	root      string
	projectID string
	state     State
	started   time.Time
	logger    *slog.Logger
}

// Run executes the pipeline for the project at root. On success the result
// carries the artifact path; on failure the returned error is the typed stage
// error (*services.ManifestError, *services.RenderError,
// *services.AssemblyError) and no artifact exists.
func (c *Controller) Run(ctx context.Context, root string) (Result, error) {
	r := &run{
		id:      uuid.NewString(),
		root:    root,
		state:   StateIdle,
		started: c.now(),
	}
	if abs, err := filepath.Abs(root); err == nil {
		r.root = abs
	}
	ctx = services.WithRunID(ctx, r.id)
	r.logger = logging.WithContext(ctx, c.logger)
	result := Result{RunID: r.id, State: StateIdle}

	c.transition(r, StateLoading, nil)
	project, err := manifest.Load(r.root)
	if err != nil {
		return c.fail(ctx, r, result, nil, err)
	}
	r.projectID = project.ProjectID
	result.ProjectID = project.ProjectID
	ctx = services.WithProjectID(ctx, r.projectID)
	r.logger = logging.WithContext(ctx, c.logger)
	c.recordStart(ctx, r, len(project.Chapters))

	r.logger.Info("manifest loaded",
		logging.String(logging.FieldEventType, "manifest_loaded"),
		logging.Int("chapters", len(project.Chapters)),
		logging.String("title", project.Metadata.Title),
		logging.Duration("declared_duration", project.TotalDuration()),
	)

	if err := c.assembler.CheckTarget(r.projectID); err != nil {
		return c.fail(ctx, r, result, nil, err)
	}

	if c.cfg.Pipeline.LockProject {
		lock, err := scratch.AcquireLock(ctx, c.cfg.Paths.ScratchDir, r.projectID)
		if err != nil {
			if reason, done := services.ReasonForContext(ctx); done {
				err = &services.RenderError{Index: -1, Reason: reason, Err: err}
			}
			return c.fail(ctx, r, result, nil, err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				r.logger.Debug("project lock release failed", logging.Error(err))
			}
		}()
	}
	c.sweepStale(ctx, r)

	c.transition(r, StateRendering, nil)
	dir, err := scratch.Create(c.cfg.Paths.ScratchDir, r.projectID, r.id)
	if err != nil {
		return c.fail(ctx, r, result, nil, services.Wrap(services.ErrRender, string(StateRendering), "create scratch", "", err))
	}

	segments, err := c.renderAll(services.WithStage(ctx, string(StateRendering)), r, project, dir.Path)
	result.Segments = segments
	if err != nil {
		return c.fail(ctx, r, result, &dir, err)
	}

	c.transition(r, StateAssembling, nil)
	paths := make([]string, len(segments))
	for i, seg := range segments {
		paths[i] = seg.Path
	}
	artifact, err := c.assembler.Assemble(services.WithStage(ctx, string(StateAssembling)), r.projectID, paths, dir.Path)
	if err != nil {
		return c.fail(ctx, r, result, &dir, err)
	}
	result.ArtifactPath = artifact

	c.transition(r, StateCleaningUp, nil)
	result.Warnings = c.cleanup(r, dir)
	c.transition(r, StateDone, nil)

	result.State = r.state
	result.Elapsed = c.now().Sub(r.started)
	c.recordFinish(ctx, r, history.Outcome{
		Status:       history.StatusSucceeded,
		ArtifactPath: artifact,
		Warnings:     len(result.Warnings),
	})
	r.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("artifact", artifact),
		logging.Int("chapters", len(segments)),
		logging.Int("cleanup_warnings", len(result.Warnings)),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// renderAll renders every chapter and returns segments in chapter order.
func (c *Controller) renderAll(ctx context.Context, r *run, project *manifest.Project, scratchDir string) ([]render.Segment, error) {
	n := len(project.Chapters)
	segments := make([]render.Segment, n)
	errs := make([]error, n)

	limit := c.cfg.Pipeline.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, ch := range project.Chapters {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			seg, err := c.renderer.Render(gctx, render.Job{
				Root:       r.root,
				Index:      i,
				Chapter:    ch,
				ScratchDir: scratchDir,
			})
			if err != nil {
				errs[i] = err
				return err
			}
			segments[i] = seg
			return nil
		})
	}
	waitErr := g.Wait()

	if err := firstFailure(errs); err != nil {
		return segments, err
	}
	if waitErr != nil {
		return segments, waitErr
	}
	if reason, done := services.ReasonForContext(ctx); done {
		// Cancelled between chapters with nothing in flight.
		return segments, &services.RenderError{Index: -1, Reason: reason, Err: ctx.Err()}
	}
	return segments, nil
}

// firstFailure returns the lowest-index error that was not merely a sibling
// cancellation; if every error is a cancellation the lowest-index one wins.
func firstFailure(errs []error) error {
	var firstCancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, services.ErrCancelled) {
			if firstCancelled == nil {
				firstCancelled = err
			}
			continue
		}
		return err
	}
	return firstCancelled
}

func (c *Controller) fail(ctx context.Context, r *run, result Result, dir *scratch.Dir, err error) (Result, error) {
	failedStage := r.state
	if dir != nil {
		c.transition(r, StateCleaningUp, err)
		result.Warnings = c.cleanup(r, *dir)
	}
	c.transition(r, StateFailed, err)
	result.State = r.state
	result.Elapsed = c.now().Sub(r.started)

	outcome := history.Outcome{
		Status:      history.StatusFailed,
		FailedStage: string(failedStage),
		Error:       err.Error(),
		Warnings:    len(result.Warnings),
	}
	if services.IsCancellation(err) && !errors.Is(err, services.ErrTimeout) {
		outcome.Status = history.StatusCancelled
	}
	var renderErr *services.RenderError
	if errors.As(err, &renderErr) && renderErr.Index >= 0 {
		idx := renderErr.Index
		outcome.ChapterIndex = &idx
	}
	if r.projectID == "" {
		c.recordStart(ctx, r, 0)
	}
	c.recordFinish(ctx, r, outcome)

	attrs := []logging.Attr{
		logging.String("failed_stage", string(failedStage)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "no artifact was produced"),
	}
	if renderErr != nil && renderErr.Index >= 0 {
		attrs = append(attrs,
			logging.Int(logging.FieldChapterIndex, renderErr.Index),
			logging.String(logging.FieldChapterTitle, renderErr.Title),
		)
	}
	logging.ErrorWithContext(r.logger, "run failed", "run_failed", attrs...)
	return result, err
}

// cleanup removes the run's scratch directory. It never fails the run.
func (c *Controller) cleanup(r *run, dir scratch.Dir) []*services.CleanupWarning {
	if err := dir.Remove(); err != nil {
		warning := &services.CleanupWarning{Path: dir.Path, Err: err}
		logging.WarnWithContext(r.logger, "scratch cleanup failed", "scratch_cleanup_failed",
			logging.String("path", dir.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually or run `chapterreel clean`"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return []*services.CleanupWarning{warning}
	}
	r.logger.Debug("scratch removed", logging.String("path", dir.Path))
	return nil
}

func (c *Controller) sweepStale(ctx context.Context, r *run) {
	hours := c.cfg.Pipeline.StaleScratchHours
	if hours <= 0 {
		return
	}
	res := scratch.CleanStale(ctx, c.cfg.Paths.ScratchDir, time.Duration(hours)*time.Hour, r.logger)
	if len(res.Removed) > 0 {
		r.logger.Info("stale scratch swept",
			logging.String(logging.FieldEventType, "scratch_sweep"),
			logging.Int("removed", len(res.Removed)),
		)
	}
}

func (c *Controller) transition(r *run, to State, err error) {
	from := r.state
	if !CanTransition(from, to) {
		// Programming error; keep going so cleanup still runs.
		r.logger.Error("illegal state transition",
			logging.String("from", string(from)),
			logging.String("to", string(to)),
		)
	}
	r.state = to
	r.logger.Debug("state transition",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
	t := Transition{RunID: r.id, ProjectID: r.projectID, From: from, To: to, At: c.now(), Err: err}
	for _, observe := range c.observers {
		observe(t)
	}
}

func (c *Controller) recordStart(ctx context.Context, r *run, chapters int) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordStart(context.WithoutCancel(ctx), r.id, r.projectID, r.root, chapters, r.started); err != nil {
		logging.WarnWithContext(r.logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func (c *Controller) recordFinish(ctx context.Context, r *run, outcome history.Outcome) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordFinish(context.WithoutCancel(ctx), r.id, outcome, c.now()); err != nil {
		logging.WarnWithContext(r.logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome missing from history"),
		)
	}
}

func hintFor(err error) string {
	var manifestErr *services.ManifestError
	var renderErr *services.RenderError
	var asmErr *services.AssemblyError
	switch {
	case errors.As(err, &manifestErr):
		return "fix manifest.json and rerun"
	case errors.Is(err, services.ErrCancelled):
		return "run was interrupted; rerun when ready"
	case errors.Is(err, services.ErrTimeout):
		return "raise encoder.timeout_seconds or check encoder load"
	case errors.As(err, &renderErr) && renderErr.Reason == services.ReasonMissingInput:
		return "check the chapter's files paths exist under the project root"
	case errors.As(err, &asmErr) && asmErr.Reason == services.ReasonArtifactExists:
		return "remove the existing artifact or set output.overwrite_existing"
	case errors.As(err, &renderErr), errors.As(err, &asmErr):
		return "inspect the encoder diagnostic above; run `chapterreel check`"
	}
	return "check logs for details"
}
