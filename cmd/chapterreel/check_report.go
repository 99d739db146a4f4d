package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// checkOutcome grades a single line of the check report.
type checkOutcome int

const (
	outcomeOK checkOutcome = iota
	outcomeAdvisory
	outcomeFailed
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const checkNameWidth = 20

var outcomeStyles = map[checkOutcome]struct{ tag, color string }{
	outcomeOK:       {"OK", ansiGreen},
	outcomeAdvisory: {"WARN", ansiYellow},
	outcomeFailed:   {"ERROR", ansiRed},
}

// checkReport collects the sections printed by the check command and counts
// the failures that should make it exit non-zero.
type checkReport struct {
	colorize bool
	lines    []string
	failures int
}

func newCheckReport(out io.Writer) *checkReport {
	return &checkReport{colorize: isTerminal(out)}
}

func (r *checkReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	r.lines = append(r.lines,
		r.paint(ansiBlue, header),
		r.paint(ansiBlue, strings.Repeat("-", len(header))),
	)
}

func (r *checkReport) add(name string, outcome checkOutcome, detail string) {
	if outcome == outcomeFailed {
		r.failures++
	}
	style := outcomeStyles[outcome]
	status := "[" + style.tag + "]"
	if detail != "" {
		status += " " + detail
	}
	r.lines = append(r.lines, r.paint(style.color, fmt.Sprintf("  %-*s %s", checkNameWidth, name+":", status)))
}

func (r *checkReport) paint(color, line string) string {
	if !r.colorize {
		return line
	}
	return color + line + ansiReset
}

func (r *checkReport) String() string {
	return strings.Join(r.lines, "\n")
}

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
