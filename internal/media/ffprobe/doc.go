// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe against a media file and returns a Result with the
// stream list and container format. The render stage uses it to verify that
// a segment carries exactly one video and one audio stream, and the duration
// prober falls back to it for audio formats audiometa cannot read.
package ffprobe
