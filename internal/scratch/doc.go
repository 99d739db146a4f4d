// Package scratch manages run-scoped working directories under the scratch
// root.
//
// Every pipeline run gets its own directory named <project token>-<uuid>, so
// concurrent runs never share segment files. Runs against the same project
// can additionally be serialized with an advisory file lock
// (<project token>.lock) held in the scratch root. CleanStale sweeps
// directories left behind by killed runs, skipping any whose project lock is
// currently held.
package scratch
