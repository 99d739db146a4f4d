// Package assemble joins rendered chapter segments into the final artifact.
//
// The join is a stream copy through ffmpeg's concat demuxer, written inside
// the run's scratch directory and then published into the output directory
// with fileutil.Publish, so the artifact path only ever holds a complete
// file. Every failure is a *services.AssemblyError.
package assemble
