package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"chapterreel/internal/encoder"
	"chapterreel/internal/services"
)

// FakeRunner is an in-process encoder.Runner. Chapter invocations write the
// invocation label to the output path; concat invocations join the listed
// files in list order, so artifact contents reveal segment order.
type FakeRunner struct {
	// Hook runs before the fake writes output. A non-nil error fails the
	// invocation without writing anything.
	Hook func(ctx context.Context, inv encoder.Invocation) error
	// SkipOutput makes successful chapter invocations leave no output file.
	SkipOutput bool

	mu    sync.Mutex
	calls []encoder.Invocation
}

// Calls returns a snapshot of recorded invocations.
func (f *FakeRunner) Calls() []encoder.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Run implements encoder.Runner.
func (f *FakeRunner) Run(ctx context.Context, inv encoder.Invocation) error {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()

	if reason, done := services.ReasonForContext(ctx); done {
		return &encoder.RunError{Binary: inv.Binary, Reason: reason, Err: ctx.Err()}
	}
	if f.Hook != nil {
		if err := f.Hook(ctx, inv); err != nil {
			return err
		}
	}
	if len(inv.Args) == 0 {
		return errors.New("fake runner: no arguments")
	}
	output := inv.Args[len(inv.Args)-1]

	if IsConcat(inv) {
		return joinList(valueAfter(inv.Args, "-i"), output)
	}
	if f.SkipOutput {
		return nil
	}
	return os.WriteFile(output, []byte(inv.Label+"\n"), 0o644)
}

// IsConcat reports whether inv is a concat invocation.
func IsConcat(inv encoder.Invocation) bool {
	return valueAfter(inv.Args, "-f") == "concat"
}

func joinList(listPath, output string) error {
	data, err := os.ReadFile(listPath)
	if err != nil {
		return fmt.Errorf("fake concat: %w", err)
	}
	var joined []byte
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "file '") {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		path = strings.ReplaceAll(path, `'\''`, "'")
		content, err := os.ReadFile(path)
		if err != nil {
			return &encoder.RunError{Binary: "ffmpeg", Reason: services.ReasonEncoderFailed, ExitCode: 1, Tail: path + ": No such file or directory", Err: err}
		}
		joined = append(joined, content...)
	}
	return os.WriteFile(output, joined, 0o644)
}

func valueAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// FailWith returns a RunError shaped like a non-zero encoder exit.
func FailWith(tail string) error {
	return &encoder.RunError{Binary: "ffmpeg", Reason: services.ReasonEncoderFailed, ExitCode: 1, Tail: tail, Err: errors.New("exit status 1")}
}
