package duration

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMeasurePrefersNative(t *testing.T) {
	p := NewProber("ffprobe", nil)
	p.native = func(context.Context, string) (time.Duration, error) { return 4 * time.Second, nil }
	p.fallback = func(context.Context, string, string) (time.Duration, error) {
		t.Fatal("fallback should not run")
		return 0, nil
	}

	m, err := p.Measure(context.Background(), "speech.mp3")
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.Duration != 4*time.Second || m.Source != SourceAudiometa {
		t.Fatalf("unexpected measurement %+v", m)
	}
}

func TestMeasureFallsBackToFFprobe(t *testing.T) {
	p := NewProber("/opt/ffprobe", nil)
	p.native = func(context.Context, string) (time.Duration, error) { return 0, errors.New("unsupported format") }
	var gotBinary string
	p.fallback = func(_ context.Context, binary, _ string) (time.Duration, error) {
		gotBinary = binary
		return 2500 * time.Millisecond, nil
	}

	m, err := p.Measure(context.Background(), "speech.wav")
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.Source != SourceFFprobe || m.Duration != 2500*time.Millisecond {
		t.Fatalf("unexpected measurement %+v", m)
	}
	if gotBinary != "/opt/ffprobe" {
		t.Fatalf("expected configured ffprobe binary, got %q", gotBinary)
	}
}

func TestMeasureFailsWhenNothingReportsDuration(t *testing.T) {
	p := NewProber("ffprobe", nil)
	p.native = func(context.Context, string) (time.Duration, error) { return 0, nil }
	p.fallback = func(context.Context, string, string) (time.Duration, error) { return 0, nil }

	if _, err := p.Measure(context.Background(), "silence.ogg"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMeasureStopsOnCancellation(t *testing.T) {
	p := NewProber("ffprobe", nil)
	p.native = func(context.Context, string) (time.Duration, error) { return 0, context.Canceled }
	p.fallback = func(context.Context, string, string) (time.Duration, error) {
		t.Fatal("fallback should not run after cancellation")
		return 0, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Measure(ctx, "speech.mp3"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
