// Package ffmpeg synthesizes ffmpeg argument lists for chapter rendering and
// segment concatenation.
//
// Nothing here executes a process. ChapterArgs builds the per-chapter encode
// (still image with a Ken Burns zoom, speech plus optional music mixed under
// the shortest policy) and ConcatArgs builds the stream-copy join over an
// ffconcat list produced by ConcatList. ZoomPlan models the zoom curve in Go
// so its bounds can be checked without running the encoder.
package ffmpeg
