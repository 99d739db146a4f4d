// Package render turns one manifest chapter into one self-contained segment.
//
// Renderer resolves the chapter's inputs under the project root, synthesizes
// the ffmpeg invocation (internal/ffmpeg), runs it through an encoder.Runner,
// and checks the output exists and is non-empty. With encoder.verify_segments
// enabled it also probes the segment and requires both a video and an audio
// stream. Every failure is a *services.RenderError naming the chapter.
package render
