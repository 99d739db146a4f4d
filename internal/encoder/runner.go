package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"chapterreel/internal/logging"
	"chapterreel/internal/services"
)

var commandContext = exec.CommandContext

const (
	defaultTailBytes = 4096
	defaultTailLines = 12
	waitDelay        = 5 * time.Second
)

// Invocation describes one encoder process.
type Invocation struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	// Label identifies the invocation in logs, e.g. "chapter 2" or "concat".
	Label string
}

// Runner executes encoder invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// RunError reports a failed invocation.
type RunError struct {
	Binary   string
	Reason   services.Reason
	ExitCode int
	Tail     string
	Err      error
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Binary, e.Reason)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RunError) Unwrap() error { return e.Err }

// Is lets callers match ErrExternalTool and the cancellation markers.
func (e *RunError) Is(target error) bool {
	switch target {
	case services.ErrExternalTool:
		return true
	case services.ErrCancelled:
		return e.Reason == services.ReasonCancelled
	case services.ErrTimeout:
		return e.Reason == services.ReasonTimeout
	}
	return false
}

// Option configures ExecRunner.
type Option func(*ExecRunner)

// WithLogger attaches a logger for invocation lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTailLines overrides how many stderr lines are kept for diagnostics.
func WithTailLines(n int) Option {
	return func(r *ExecRunner) {
		if n > 0 {
			r.tailLines = n
		}
	}
}

// ExecRunner runs invocations as child processes.
type ExecRunner struct {
	logger    *slog.Logger
	tailLines int
}

// NewExecRunner constructs a runner using defaults.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{logger: logging.NewNop(), tailLines: defaultTailLines}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the process and waits for it. A non-nil error is always a
// *RunError.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	binary := strings.TrimSpace(inv.Binary)
	if binary == "" {
		return &RunError{Binary: "encoder", Reason: services.ReasonEncoderFailed, Err: errors.New("binary not configured")}
	}
	if reason, done := services.ReasonForContext(ctx); done {
		return &RunError{Binary: binary, Reason: reason, Err: ctx.Err()}
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	tail := newTailBuffer(defaultTailBytes)
	cmd := commandContext(runCtx, binary, inv.Args...) //nolint:gosec
	cmd.Stderr = tail
	cmd.WaitDelay = waitDelay

	logger := logging.WithContext(ctx, r.logger).With(logging.String("invocation", inv.Label))
	logger.Debug("encoder started",
		logging.String("binary", binary),
		logging.String("args", strings.Join(inv.Args, " ")),
	)
	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)
	if err == nil {
		logger.Debug("encoder finished", logging.Duration("elapsed", elapsed))
		return nil
	}

	runErr := &RunError{
		Binary: binary,
		Reason: services.ReasonEncoderFailed,
		Tail:   tail.Lines(r.tailLines),
		Err:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		runErr.ExitCode = exitErr.ExitCode()
	}
	switch {
	case ctx.Err() != nil:
		runErr.Reason, _ = services.ReasonForContext(ctx)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		runErr.Reason = services.ReasonTimeout
		runErr.Err = fmt.Errorf("exceeded %s: %w", inv.Timeout, err)
	}
	logger.Debug("encoder failed",
		logging.String("reason", string(runErr.Reason)),
		logging.Int("exit_code", runErr.ExitCode),
		logging.Duration("elapsed", elapsed),
	)
	return runErr
}
