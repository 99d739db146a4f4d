package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chapterreel/internal/config"
)

// oversample scales the source before zoompan so sub-pixel pans do not
// visibly jitter.
const oversample = 2

// ChapterSpec describes one chapter encode. Paths must already be absolute.
type ChapterSpec struct {
	Image       string
	Speech      string
	Music       string
	MusicVolume float64
	Duration    float64
	Output      string
	Encoder     config.Encoder
}

// HasMusic reports whether a music bed is mixed under the speech.
func (s ChapterSpec) HasMusic() bool {
	return strings.TrimSpace(s.Music) != ""
}

// Zoom returns the Ken Burns plan for the chapter.
func (s ChapterSpec) Zoom() ZoomPlan {
	return NewZoomPlan(s.Duration, s.Encoder.FrameRate, s.Encoder.MaxZoom)
}

// FilterGraph returns the filter_complex for the chapter. The graph exposes
// [v] and [a] output pads.
func (s ChapterSpec) FilterGraph() string {
	enc := s.Encoder
	plan := s.Zoom()
	w, h := enc.Width, enc.Height

	video := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,"+
			"zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d,"+
			"format=%s[v]",
		w*oversample, h*oversample, w*oversample, h*oversample,
		plan.Expression(), plan.Frames, w, h, enc.FrameRate,
		enc.PixelFormat,
	)

	speechGain := formatFloat(enc.SpeechGain)
	var audio string
	if s.HasMusic() {
		audio = fmt.Sprintf(
			"[1:a]volume=%s[speech];[2:a]volume=%s[music];"+
				"[speech][music]amix=inputs=2:duration=shortest:dropout_transition=0:normalize=0[a]",
			speechGain, formatFloat(s.MusicVolume),
		)
	} else {
		audio = fmt.Sprintf("[1:a]volume=%s[a]", speechGain)
	}
	return video + ";" + audio
}

// Validate reports specs that cannot produce a segment.
func (s ChapterSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Image) == "":
		return errors.New("chapter spec: image path required")
	case strings.TrimSpace(s.Speech) == "":
		return errors.New("chapter spec: speech path required")
	case strings.TrimSpace(s.Output) == "":
		return errors.New("chapter spec: output path required")
	case s.Duration <= 0:
		return fmt.Errorf("chapter spec: duration must be positive, got %v", s.Duration)
	case s.Encoder.Width <= 0 || s.Encoder.Height <= 0 || s.Encoder.FrameRate <= 0:
		return errors.New("chapter spec: output geometry must be positive")
	case s.MusicVolume < 0:
		return fmt.Errorf("chapter spec: music volume must be >= 0, got %v", s.MusicVolume)
	}
	return nil
}

// ChapterArgs returns the ffmpeg arguments (without the binary) that render
// the chapter to spec.Output.
func ChapterArgs(spec ChapterSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	enc := spec.Encoder

	args := baseArgs()
	args = append(args, "-i", spec.Image, "-i", spec.Speech)
	if spec.HasMusic() {
		args = append(args, "-i", spec.Music)
	}
	args = append(args,
		"-filter_complex", spec.FilterGraph(),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", enc.VideoCodec,
	)
	if enc.Preset != "" {
		args = append(args, "-preset", enc.Preset)
	}
	args = append(args,
		"-crf", strconv.Itoa(enc.CRF),
		"-pix_fmt", enc.PixelFormat,
		"-r", strconv.Itoa(enc.FrameRate),
		"-c:a", enc.AudioCodec,
	)
	if enc.AudioBitrate != "" {
		args = append(args, "-b:a", enc.AudioBitrate)
	}
	args = append(args,
		"-ar", strconv.Itoa(enc.AudioSampleRate),
		"-ac", "2",
		"-shortest",
	)
	args = append(args, containerArgs(enc.Container)...)
	args = append(args, spec.Output)
	return args, nil
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
}

func containerArgs(container string) []string {
	switch container {
	case "mp4", "mov":
		return []string{"-movflags", "+faststart"}
	default:
		return nil
	}
}
