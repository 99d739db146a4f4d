package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chapterreel/internal/config"
	"chapterreel/internal/encoder"
	"chapterreel/internal/ffmpeg"
	"chapterreel/internal/fileutil"
	"chapterreel/internal/logging"
	"chapterreel/internal/manifest"
	"chapterreel/internal/media/ffprobe"
	"chapterreel/internal/services"
)

// Job is one chapter to render.
type Job struct {
	Root       string
	Index      int
	Chapter    manifest.Chapter
	ScratchDir string
}

// Segment is a rendered chapter in the scratch directory.
type Segment struct {
	Index   int
	Title   string
	Path    string
	Size    int64
	Elapsed time.Duration
}

// InspectFunc probes a rendered segment.
type InspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Renderer renders chapters with a shared encoder configuration so every
// segment is concat-compatible.
type Renderer struct {
	cfg     *config.Config
	runner  encoder.Runner
	logger  *slog.Logger
	inspect InspectFunc
}

// New constructs a Renderer.
func New(cfg *config.Config, runner encoder.Runner, logger *slog.Logger) *Renderer {
	return &Renderer{
		cfg:     cfg,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "render"),
		inspect: ffprobe.Inspect,
	}
}

// WithInspector overrides the segment probe.
func (r *Renderer) WithInspector(fn InspectFunc) *Renderer {
	if fn != nil {
		r.inspect = fn
	}
	return r
}

// SegmentName returns the scratch file name for a chapter index.
func SegmentName(index int, container string) string {
	return fmt.Sprintf("segment-%04d.%s", index, container)
}

// Spec resolves the chapter inputs and returns its encode parameters.
func (r *Renderer) Spec(job Job) (ffmpeg.ChapterSpec, error) {
	ch := job.Chapter
	image, err := resolveInput(job.Root, "files.image", ch.Files.Image)
	if err != nil {
		return ffmpeg.ChapterSpec{}, err
	}
	speech, err := resolveInput(job.Root, "files.speech", ch.Files.Speech)
	if err != nil {
		return ffmpeg.ChapterSpec{}, err
	}
	var music string
	if ch.HasMusic() {
		if music, err = resolveInput(job.Root, "files.music", ch.Files.Music); err != nil {
			return ffmpeg.ChapterSpec{}, err
		}
	}
	return ffmpeg.ChapterSpec{
		Image:       image,
		Speech:      speech,
		Music:       music,
		MusicVolume: ch.Volume(),
		Duration:    ch.DurationSeconds(),
		Output:      filepath.Join(job.ScratchDir, SegmentName(job.Index, r.cfg.Encoder.Container)),
		Encoder:     r.cfg.Encoder,
	}, nil
}

func resolveInput(root, field, rel string) (string, error) {
	path, err := fileutil.ResolveWithin(root, rel)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	if err := fileutil.RequireFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %s does not exist", field, rel)
		}
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return path, nil
}

// Render produces the chapter's segment.
func (r *Renderer) Render(ctx context.Context, job Job) (Segment, error) {
	title := job.Chapter.DisplayTitle(job.Index)
	ctx = services.WithChapterIndex(ctx, job.Index)
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldChapterTitle, title))

	fail := func(reason services.Reason, diagnostic string, err error) (Segment, error) {
		return Segment{}, &services.RenderError{
			Index:      job.Index,
			Title:      title,
			Reason:     reason,
			Diagnostic: diagnostic,
			Err:        err,
		}
	}

	if reason, done := services.ReasonForContext(ctx); done {
		return fail(reason, "", ctx.Err())
	}

	spec, err := r.Spec(job)
	if err != nil {
		return fail(services.ReasonMissingInput, "", err)
	}
	args, err := ffmpeg.ChapterArgs(spec)
	if err != nil {
		return fail(services.ReasonEncoderFailed, "", err)
	}
	_ = os.Remove(spec.Output)

	logger.Info("chapter render started",
		logging.String(logging.FieldEventType, "chapter_render_start"),
		logging.Float64("duration_seconds", spec.Duration),
		logging.Bool("music", spec.HasMusic()),
		logging.Int("frames", spec.Zoom().Frames),
	)

	started := time.Now()
	err = r.runner.Run(ctx, encoder.Invocation{
		Binary:  r.cfg.FFmpegBinary(),
		Args:    args,
		Timeout: time.Duration(r.cfg.Encoder.TimeoutSeconds) * time.Second,
		Label:   fmt.Sprintf("chapter %d", job.Index),
	})
	if err != nil {
		_ = os.Remove(spec.Output)
		reason := services.ReasonEncoderFailed
		var diagnostic string
		var runErr *encoder.RunError
		if errors.As(err, &runErr) {
			reason = runErr.Reason
			diagnostic = runErr.Tail
		} else if ctxReason, done := services.ReasonForContext(ctx); done {
			reason = ctxReason
		}
		return fail(reason, diagnostic, err)
	}

	size, err := fileutil.NonEmptyFile(spec.Output)
	if err != nil {
		_ = os.Remove(spec.Output)
		return fail(services.ReasonNoOutput, "", err)
	}

	if r.cfg.Encoder.VerifySegments {
		if err := r.verify(ctx, spec.Output); err != nil {
			_ = os.Remove(spec.Output)
			return fail(services.ReasonInvalidOutput, "", err)
		}
	}

	elapsed := time.Since(started)
	logger.Info("chapter render completed",
		logging.String(logging.FieldEventType, "chapter_render_complete"),
		logging.String("segment", spec.Output),
		logging.Int64("size_bytes", size),
		logging.Duration("elapsed", elapsed),
	)
	return Segment{Index: job.Index, Title: title, Path: spec.Output, Size: size, Elapsed: elapsed}, nil
}

func (r *Renderer) verify(ctx context.Context, path string) error {
	result, err := r.inspect(ctx, r.cfg.FFprobeBinary(), path)
	if err != nil {
		return err
	}
	if result.VideoStreamCount() != 1 {
		return fmt.Errorf("expected 1 video stream, found %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 1 {
		return fmt.Errorf("expected 1 audio stream, found %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() <= 0 {
		return errors.New("segment reports no duration")
	}
	return nil
}
