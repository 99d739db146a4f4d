package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chapterreel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembling", "concat", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembling", "concat", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRenderErrorNamesChapterAndDiagnostic(t *testing.T) {
	cause := errors.New("exit status 1")
	err := error(&services.RenderError{
		Index:      0,
		Title:      "Intro",
		Reason:     services.ReasonEncoderFailed,
		Diagnostic: "image.png: No such file or directory",
		Err:        cause,
	})

	if !errors.Is(err, services.ErrRender) {
		t.Fatal("expected ErrRender marker")
	}
	if errors.Is(err, services.ErrAssembly) || errors.Is(err, services.ErrCancelled) {
		t.Fatal("unexpected marker match")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	msg := err.Error()
	for _, fragment := range []string{"chapter 0", `"Intro"`, "encoder_failed", "No such file"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in %q", fragment, msg)
		}
	}

	var renderErr *services.RenderError
	if !errors.As(err, &renderErr) || renderErr.Index != 0 {
		t.Fatalf("expected RenderError via errors.As, got %#v", renderErr)
	}
}

func TestCancellationReasonsMatchMarkers(t *testing.T) {
	cancelled := &services.AssemblyError{Reason: services.ReasonCancelled}
	if !errors.Is(cancelled, services.ErrCancelled) || !errors.Is(cancelled, services.ErrAssembly) {
		t.Fatal("expected cancelled assembly error to match both markers")
	}
	if !services.IsCancellation(cancelled) {
		t.Fatal("expected IsCancellation to be true")
	}

	timedOut := &services.RenderError{Reason: services.ReasonTimeout}
	if !errors.Is(timedOut, services.ErrTimeout) || errors.Is(timedOut, services.ErrCancelled) {
		t.Fatal("expected timeout marker only")
	}

	if services.IsCancellation(&services.RenderError{Reason: services.ReasonEncoderFailed}) {
		t.Fatal("plain failure should not count as cancellation")
	}
}

func TestReasonForContext(t *testing.T) {
	if _, ok := services.ReasonForContext(context.Background()); ok {
		t.Fatal("live context should not report a reason")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if reason, ok := services.ReasonForContext(ctx); !ok || reason != services.ReasonCancelled {
		t.Fatalf("expected cancelled, got %q %v", reason, ok)
	}

	deadline, cancelDeadline := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancelDeadline()
	<-deadline.Done()
	if reason, ok := services.ReasonForContext(deadline); !ok || reason != services.ReasonTimeout {
		t.Fatalf("expected timeout, got %q %v", reason, ok)
	}
}

func TestManifestErrorMessage(t *testing.T) {
	err := &services.ManifestError{Kind: services.ManifestMissingField, Path: "/p/manifest.json", Field: "chapters[1].files.speech"}
	if !errors.Is(err, services.ErrManifest) {
		t.Fatal("expected ErrManifest marker")
	}
	if !strings.Contains(err.Error(), "missing required field chapters[1].files.speech") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
