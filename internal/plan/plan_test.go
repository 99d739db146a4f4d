package plan_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapterreel/internal/manifest"
	"chapterreel/internal/media/duration"
	"chapterreel/internal/plan"
	"chapterreel/internal/testsupport"
)

type fixedMeasurer map[string]time.Duration

func (f fixedMeasurer) Measure(_ context.Context, path string) (duration.Measurement, error) {
	return duration.Measurement{Path: path, Duration: f[filepath.Base(path)]}, nil
}

func TestExpectedShortestPolicy(t *testing.T) {
	tests := []struct {
		name        string
		video       time.Duration
		speech      time.Duration
		music       time.Duration
		hasMusic    bool
		want        time.Duration
		wantLimiter plan.Limiter
	}{
		{"speech shorter than image", 10 * time.Second, 6 * time.Second, 0, false, 6 * time.Second, plan.LimitSpeech},
		{"image shorter than speech", 4 * time.Second, 6 * time.Second, 0, false, 4 * time.Second, plan.LimitImage},
		{"music shorter than speech", 10 * time.Second, 8 * time.Second, 5 * time.Second, true, 5 * time.Second, plan.LimitMusic},
		{"speech shorter than music", 10 * time.Second, 3 * time.Second, 9 * time.Second, true, 3 * time.Second, plan.LimitSpeech},
		{"music ignored without flag", 10 * time.Second, 8 * time.Second, time.Second, false, 8 * time.Second, plan.LimitSpeech},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, limiter := plan.Expected(tt.video, tt.speech, tt.music, tt.hasMusic)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLimiter, limiter)
		})
	}
}

func TestBuildProjectsTotal(t *testing.T) {
	root := testsupport.WriteProject(t, "demo",
		testsupport.Chapter{Title: "Intro", Duration: 5},
		testsupport.Chapter{Title: "Outro", Duration: 3, Music: true, MusicVolume: 0.3},
	)
	project, err := manifest.Load(root)
	require.NoError(t, err)

	m := fixedMeasurer{
		"0.mp3":     4 * time.Second,
		"1.mp3":     6 * time.Second,
		"bed-1.mp3": 10 * time.Second,
	}
	p, err := plan.Build(context.Background(), root, project, 30, m)
	require.NoError(t, err)

	require.Len(t, p.Chapters, 2)
	assert.Equal(t, 4*time.Second, p.Chapters[0].Expected)
	assert.Equal(t, plan.LimitSpeech, p.Chapters[0].Limiter)
	assert.Equal(t, 150, p.Chapters[0].Frames)

	assert.Equal(t, 3*time.Second, p.Chapters[1].Expected)
	assert.Equal(t, plan.LimitImage, p.Chapters[1].Limiter)
	assert.Equal(t, 3*time.Second, p.Chapters[1].Truncated)
	assert.Equal(t, 7*time.Second, p.Total)
}

func TestBuildFailsOnMissingSpeech(t *testing.T) {
	root := testsupport.WriteProject(t, "demo", testsupport.Chapter{Duration: 1})
	project, err := manifest.Load(root)
	require.NoError(t, err)
	project.Chapters[0].Files.Speech = "audio/missing.mp3"

	_, err = plan.Build(context.Background(), root, project, 30, fixedMeasurer{})
	assert.Error(t, err)
}
