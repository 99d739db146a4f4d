package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
)

// ZoomPlan is a linear zoom from 1.0 toward Max, advanced once per output
// frame and clamped at Max.
type ZoomPlan struct {
	Frames int
	Step   float64
	Max    float64
}

// MaxFrames bounds FrameCount so absurd durations cannot overflow int.
const MaxFrames = math.MaxInt32

// FrameCount returns the number of output frames needed to hold a still for
// the given duration. At least one frame is always produced and never more
// than MaxFrames.
func FrameCount(durationSeconds float64, fps int) int {
	if math.IsNaN(durationSeconds) || durationSeconds <= 0 || fps <= 0 {
		return 1
	}
	// Trim float noise so 2.0s at 30fps is 60 frames, not 61.
	exact := math.Ceil(durationSeconds*float64(fps) - 1e-9)
	if exact >= MaxFrames {
		return MaxFrames
	}
	if exact < 1 {
		return 1
	}
	return int(exact)
}

// NewZoomPlan spreads the zoom from 1.0 to maxZoom across the chapter's
// frames. A maxZoom below 1 disables the effect.
func NewZoomPlan(durationSeconds float64, fps int, maxZoom float64) ZoomPlan {
	if maxZoom < 1 || math.IsNaN(maxZoom) {
		maxZoom = 1
	}
	frames := FrameCount(durationSeconds, fps)
	return ZoomPlan{
		Frames: frames,
		Step:   (maxZoom - 1) / float64(frames),
		Max:    maxZoom,
	}
}

// Factor returns the zoom applied to output frame n.
func (p ZoomPlan) Factor(frame int) float64 {
	if frame < 0 {
		frame = 0
	}
	return math.Min(1+p.Step*float64(frame), p.Max)
}

// Expression renders the plan as a zoompan z= expression. "on" is the output
// frame number, so the curve depends only on frame position.
func (p ZoomPlan) Expression() string {
	return fmt.Sprintf("min(1+%s*on,%s)", formatFloat(p.Step), formatFloat(p.Max))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
