package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrManifest     = errors.New("manifest error")
	ErrRender       = errors.New("render error")
	ErrAssembly     = errors.New("assembly error")
	ErrCancelled    = errors.New("cancelled")
	ErrTimeout      = errors.New("timeout")
	ErrExternalTool = errors.New("external tool error")
)

// ManifestErrorKind classifies why a manifest could not be loaded.
type ManifestErrorKind string

const (
	ManifestNotFound     ManifestErrorKind = "not_found"
	ManifestMalformed    ManifestErrorKind = "malformed"
	ManifestMissingField ManifestErrorKind = "missing_field"
	ManifestInvalidValue ManifestErrorKind = "invalid_value"
)

// ManifestError reports an unreadable, malformed, or incomplete manifest.
type ManifestError struct {
	Kind   ManifestErrorKind
	Path   string
	Field  string
	Detail string
	Err    error
}

func (e *ManifestError) Error() string {
	var b strings.Builder
	b.WriteString("manifest")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	switch e.Kind {
	case ManifestNotFound:
		b.WriteString("file not found")
	case ManifestMalformed:
		b.WriteString("malformed structure")
	case ManifestMissingField:
		b.WriteString("missing required field")
	case ManifestInvalidValue:
		b.WriteString("invalid value")
	default:
		b.WriteString("invalid")
	}
	if e.Field != "" {
		b.WriteString(" ")
		b.WriteString(e.Field)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ManifestError) Is(target error) bool { return target == ErrManifest }

func (e *ManifestError) Unwrap() error { return e.Err }

// Reason describes why a render or assembly invocation failed.
type Reason string

const (
	ReasonEncoderFailed  Reason = "encoder_failed"
	ReasonMissingInput   Reason = "missing_input"
	ReasonNoOutput       Reason = "no_output"
	ReasonInvalidOutput  Reason = "invalid_output"
	ReasonMissingSegment Reason = "missing_segment"
	ReasonArtifactExists Reason = "artifact_exists"
	ReasonPublish        Reason = "publish_failed"
	ReasonCancelled      Reason = "cancelled"
	ReasonTimeout        Reason = "timeout"
)

// ReasonForContext maps a finished context to cancelled/timeout. ok is false
// while ctx is still live.
func ReasonForContext(ctx context.Context) (Reason, bool) {
	switch {
	case ctx == nil || ctx.Err() == nil:
		return "", false
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonTimeout, true
	default:
		return ReasonCancelled, true
	}
}

// RenderError reports a failed chapter render. Index is -1 when the stage
// failed before any chapter was attributable (cancelled while waiting).
type RenderError struct {
	Index      int
	Title      string
	Reason     Reason
	Diagnostic string
	Err        error
}

func (e *RenderError) Error() string {
	subject := "render"
	if e.Index >= 0 {
		subject = fmt.Sprintf("render chapter %d %q", e.Index, e.Title)
	}
	return formatStageError(subject, e.Reason, e.Err, e.Diagnostic)
}

func (e *RenderError) Is(target error) bool { return matchReason(target, ErrRender, e.Reason) }

func (e *RenderError) Unwrap() error { return e.Err }

// AssemblyError reports a failed concatenation or artifact publish.
type AssemblyError struct {
	Reason     Reason
	Path       string
	Diagnostic string
	Err        error
}

func (e *AssemblyError) Error() string {
	subject := "assemble"
	if e.Path != "" {
		subject = "assemble " + e.Path
	}
	return formatStageError(subject, e.Reason, e.Err, e.Diagnostic)
}

func (e *AssemblyError) Is(target error) bool { return matchReason(target, ErrAssembly, e.Reason) }

func (e *AssemblyError) Unwrap() error { return e.Err }

// CleanupWarning reports a scratch directory that could not be removed. It is
// never returned as a run failure.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup %s: %v", w.Path, w.Err)
}

func (w *CleanupWarning) Unwrap() error { return w.Err }

// IsCancellation reports whether err stems from cancellation or a timeout.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func matchReason(target, marker error, reason Reason) bool {
	switch target {
	case marker:
		return true
	case ErrCancelled:
		return reason == ReasonCancelled
	case ErrTimeout:
		return reason == ReasonTimeout
	}
	return false
}

func formatStageError(subject string, reason Reason, err error, diagnostic string) string {
	var b strings.Builder
	b.WriteString(subject)
	if reason != "" {
		b.WriteString(": ")
		b.WriteString(string(reason))
	}
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	if diagnostic = strings.TrimSpace(diagnostic); diagnostic != "" {
		b.WriteString("\n")
		b.WriteString(diagnostic)
	}
	return b.String()
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
