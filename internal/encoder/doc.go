// Package encoder runs external encoder processes (ffmpeg) for the render and
// assembly stages.
//
// Runner is the capability both stages depend on: one synchronous process per
// invocation, exit status zero is success. ExecRunner is the os/exec backed
// implementation; it applies per-invocation timeouts, keeps the tail of
// stderr for diagnostics, and classifies failures into services.Reason values
// (encoder_failed, cancelled, timeout) so callers can build typed stage
// errors without inspecting process state.
package encoder
