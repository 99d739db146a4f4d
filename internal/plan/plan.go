// Package plan predicts segment lengths before anything is encoded.
//
// Each rendered chapter is trimmed to the shortest of its timelines: the
// still image is held for the declared duration, speech plays alone or is
// mixed with music under amix duration=shortest, and -shortest cuts the
// output where the first of video and audio ends.
package plan

import (
	"context"
	"fmt"
	"time"

	"chapterreel/internal/ffmpeg"
	"chapterreel/internal/fileutil"
	"chapterreel/internal/manifest"
	"chapterreel/internal/media/duration"
)

// Limiter names the timeline that bounds a chapter.
type Limiter string

const (
	LimitImage  Limiter = "image"
	LimitSpeech Limiter = "speech"
	LimitMusic  Limiter = "music"
)

// Measurer measures audio lengths.
type Measurer interface {
	Measure(ctx context.Context, path string) (duration.Measurement, error)
}

// Chapter is the prediction for one chapter.
type Chapter struct {
	Index    int
	Title    string
	Declared time.Duration
	Frames   int
	Speech   time.Duration
	Music    time.Duration
	HasMusic bool
	Expected time.Duration
	Limiter  Limiter
	// Truncated is how much speech is cut by the image hold or music bed.
	Truncated time.Duration
}

// Plan is the prediction for a whole project.
type Plan struct {
	ProjectID string
	Chapters  []Chapter
	Total     time.Duration
}

// Expected applies the shortest policy to known timeline lengths. music is
// ignored unless hasMusic is set.
func Expected(video, speech, music time.Duration, hasMusic bool) (time.Duration, Limiter) {
	audio, audioLimiter := speech, LimitSpeech
	if hasMusic && music < audio {
		audio, audioLimiter = music, LimitMusic
	}
	if video <= audio {
		return video, LimitImage
	}
	return audio, audioLimiter
}

// Build measures each chapter's audio and predicts its rendered length.
func Build(ctx context.Context, root string, project *manifest.Project, fps int, m Measurer) (Plan, error) {
	result := Plan{ProjectID: project.ProjectID, Chapters: make([]Chapter, 0, len(project.Chapters))}
	for i, ch := range project.Chapters {
		frames := ffmpeg.FrameCount(ch.DurationSeconds(), fps)
		video := time.Duration(float64(frames) / float64(fps) * float64(time.Second))
		entry := Chapter{
			Index:    i,
			Title:    ch.DisplayTitle(i),
			Declared: ch.Length(),
			Frames:   frames,
			HasMusic: ch.HasMusic(),
		}

		speech, err := measure(ctx, root, ch.Files.Speech, m)
		if err != nil {
			return Plan{}, fmt.Errorf("chapter %d speech: %w", i, err)
		}
		entry.Speech = speech
		if entry.HasMusic {
			if entry.Music, err = measure(ctx, root, ch.Files.Music, m); err != nil {
				return Plan{}, fmt.Errorf("chapter %d music: %w", i, err)
			}
		}

		entry.Expected, entry.Limiter = Expected(video, entry.Speech, entry.Music, entry.HasMusic)
		if entry.Speech > entry.Expected {
			entry.Truncated = entry.Speech - entry.Expected
		}
		result.Chapters = append(result.Chapters, entry)
		result.Total += entry.Expected
	}
	return result, nil
}

func measure(ctx context.Context, root, rel string, m Measurer) (time.Duration, error) {
	path, err := fileutil.ResolveWithin(root, rel)
	if err != nil {
		return 0, err
	}
	if err := fileutil.RequireFile(path); err != nil {
		return 0, err
	}
	measurement, err := m.Measure(ctx, path)
	if err != nil {
		return 0, err
	}
	return measurement.Duration, nil
}
