package assemble

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chapterreel/internal/config"
	"chapterreel/internal/encoder"
	"chapterreel/internal/ffmpeg"
	"chapterreel/internal/fileutil"
	"chapterreel/internal/logging"
	"chapterreel/internal/services"
)

const (
	listFileName = "concat.txt"
	joinBaseName = "joined"
)

// Assembler concatenates segments and publishes the result.
type Assembler struct {
	cfg    *config.Config
	runner encoder.Runner
	logger *slog.Logger
}

// New constructs an Assembler.
func New(cfg *config.Config, runner encoder.Runner, logger *slog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "assemble"),
	}
}

// ArtifactPath returns where the artifact for projectID is published.
func (a *Assembler) ArtifactPath(projectID string) string {
	return filepath.Join(a.cfg.Paths.OutputDir, a.cfg.ArtifactName(projectID))
}

// CheckTarget fails when the artifact already exists and overwriting is
// disabled. The pipeline calls it before rendering so a doomed run does not
// spend encoder time.
func (a *Assembler) CheckTarget(projectID string) error {
	target := a.ArtifactPath(projectID)
	if a.cfg.Output.OverwriteExisting {
		return nil
	}
	if _, err := os.Lstat(target); err == nil {
		return &services.AssemblyError{
			Reason:     services.ReasonArtifactExists,
			Path:       target,
			Diagnostic: "set output.overwrite_existing = true to replace it",
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &services.AssemblyError{Reason: services.ReasonPublish, Path: target, Err: err}
	}
	return nil
}

// Assemble joins segments (already in chapter order) and returns the
// published artifact path.
func (a *Assembler) Assemble(ctx context.Context, projectID string, segments []string, scratchDir string) (string, error) {
	target := a.ArtifactPath(projectID)
	logger := logging.WithContext(ctx, a.logger)

	fail := func(reason services.Reason, diagnostic string, err error) (string, error) {
		return "", &services.AssemblyError{Reason: reason, Path: target, Diagnostic: diagnostic, Err: err}
	}

	if len(segments) == 0 {
		return fail(services.ReasonMissingSegment, "", errors.New("no segments to join"))
	}
	for i, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return fail(services.ReasonMissingSegment, "", fmt.Errorf("segment %d was not rendered", i))
		}
		if _, err := fileutil.NonEmptyFile(segment); err != nil {
			return fail(services.ReasonMissingSegment, "", fmt.Errorf("segment %d: %w", i, err))
		}
	}
	if err := a.CheckTarget(projectID); err != nil {
		return "", err
	}
	if reason, done := services.ReasonForContext(ctx); done {
		return fail(reason, "", ctx.Err())
	}

	listPath := filepath.Join(scratchDir, listFileName)
	if err := os.WriteFile(listPath, []byte(ffmpeg.ConcatList(segments)), 0o644); err != nil {
		return fail(services.ReasonEncoderFailed, "", fmt.Errorf("write concat list: %w", err))
	}
	joined := filepath.Join(scratchDir, joinBaseName+"."+a.cfg.Encoder.Container)
	_ = os.Remove(joined)

	args, err := ffmpeg.ConcatArgs(listPath, joined, a.cfg.Encoder.Container)
	if err != nil {
		return fail(services.ReasonEncoderFailed, "", err)
	}

	logger.Info("assembly started",
		logging.String(logging.FieldEventType, "assembly_start"),
		logging.Int("segments", len(segments)),
		logging.String("target", target),
	)
	started := time.Now()
	if err := a.runner.Run(ctx, encoder.Invocation{
		Binary:  a.cfg.FFmpegBinary(),
		Args:    args,
		Timeout: time.Duration(a.cfg.Encoder.TimeoutSeconds) * time.Second,
		Label:   "concat",
	}); err != nil {
		_ = os.Remove(joined)
		reason := services.ReasonEncoderFailed
		var diagnostic string
		var runErr *encoder.RunError
		if errors.As(err, &runErr) {
			reason = runErr.Reason
			diagnostic = runErr.Tail
		}
		return fail(reason, diagnostic, err)
	}

	size, err := fileutil.NonEmptyFile(joined)
	if err != nil {
		_ = os.Remove(joined)
		return fail(services.ReasonNoOutput, "", err)
	}

	if err := os.MkdirAll(a.cfg.Paths.OutputDir, 0o755); err != nil {
		return fail(services.ReasonPublish, "", fmt.Errorf("create output directory: %w", err))
	}
	if err := fileutil.Publish(joined, target, a.cfg.Output.OverwriteExisting); err != nil {
		_ = os.Remove(joined)
		if errors.Is(err, fs.ErrExist) {
			return fail(services.ReasonArtifactExists, "", err)
		}
		return fail(services.ReasonPublish, "", err)
	}

	logger.Info("assembly completed",
		logging.String(logging.FieldEventType, "assembly_complete"),
		logging.String("artifact", target),
		logging.Int64("size_bytes", size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return target, nil
}
