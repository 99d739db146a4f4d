// Package duration measures audio track lengths for chapter planning.
//
// Tagged formats (MP3, M4A/M4B, FLAC) are read natively with audiometa;
// anything it cannot parse falls back to ffprobe.
package duration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simonhull/audiometa"

	"chapterreel/internal/logging"
	"chapterreel/internal/media/ffprobe"
)

// Source names the backend that produced a measurement.
type Source string

const (
	SourceAudiometa Source = "audiometa"
	SourceFFprobe   Source = "ffprobe"
)

// Measurement is the length of one audio file.
type Measurement struct {
	Path     string
	Duration time.Duration
	Source   Source
}

// Prober measures audio durations.
type Prober struct {
	ffprobeBinary string
	logger        *slog.Logger

	// Overridable for tests.
	native   func(ctx context.Context, path string) (time.Duration, error)
	fallback func(ctx context.Context, binary, path string) (time.Duration, error)
}

// NewProber constructs a prober that falls back to the given ffprobe binary.
func NewProber(ffprobeBinary string, logger *slog.Logger) *Prober {
	return &Prober{
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "duration"),
		native:        nativeDuration,
		fallback:      ffprobeDuration,
	}
}

// Measure returns the playable length of the audio file at path.
func (p *Prober) Measure(ctx context.Context, path string) (Measurement, error) {
	d, nativeErr := p.native(ctx, path)
	if nativeErr == nil && d > 0 {
		return Measurement{Path: path, Duration: d, Source: SourceAudiometa}, nil
	}
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	p.logger.Debug("native duration unavailable; using ffprobe",
		logging.String("path", path),
		logging.Error(nativeErr),
	)
	d, err := p.fallback(ctx, p.ffprobeBinary, path)
	if err != nil {
		return Measurement{}, fmt.Errorf("measure %s: %w", path, err)
	}
	if d <= 0 {
		return Measurement{}, fmt.Errorf("measure %s: no duration reported", path)
	}
	return Measurement{Path: path, Duration: d, Source: SourceFFprobe}, nil
}

func nativeDuration(ctx context.Context, path string) (time.Duration, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return file.Audio.Duration, nil
}

func ffprobeDuration(ctx context.Context, binary, path string) (time.Duration, error) {
	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return 0, err
	}
	return result.Duration(), nil
}
