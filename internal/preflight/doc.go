// Package preflight provides readiness checks for the binaries and
// filesystem paths a render run depends on.
//
// These checks run in two contexts:
//   - The root command calls RunAll before a run and logs any failure.
//   - The CLI "chapterreel check" command prints every result as a table.
package preflight
