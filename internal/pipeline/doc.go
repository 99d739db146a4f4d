// Package pipeline orchestrates one chapterreel run.
//
// Controller.Run walks the state machine
//
//	Idle -> Loading -> Rendering -> Assembling -> CleaningUp -> Done
//
// with Failed reachable from every non-terminal state. Loading reads the
// manifest and checks the artifact target; no scratch directory exists until
// Rendering starts. Chapters render through an errgroup bounded by
// pipeline.concurrency, segments are stored by chapter index, and the first
// genuine failure (lowest index, ignoring siblings that were only cancelled)
// aborts the run. Cleanup always removes the run's scratch directory with a
// non-cancelled context; failures there are CleanupWarnings on the Result and
// never change the outcome.
package pipeline
