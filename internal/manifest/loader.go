package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chapterreel/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names so errors match what the author wrote.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if idx := strings.IndexByte(name, ','); idx >= 0 {
			name = name[:idx]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Path returns the manifest file location for a project root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads and validates <root>/manifest.json. Failures are returned as
// *services.ManifestError.
func Load(root string) (*Project, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &services.ManifestError{Kind: services.ManifestNotFound, Path: path, Err: err}
		}
		return nil, &services.ManifestError{Kind: services.ManifestMalformed, Path: path, Detail: "unreadable", Err: err}
	}
	project, err := Parse(data)
	if err != nil {
		var manifestErr *services.ManifestError
		if errors.As(err, &manifestErr) {
			manifestErr.Path = path
		}
		return nil, err
	}
	return project, nil
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Project, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &services.ManifestError{Kind: services.ManifestMalformed, Detail: "empty document"}
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, &services.ManifestError{Kind: services.ManifestMalformed, Detail: describeDecodeError(err), Err: err}
	}
	if err := Validate(&project); err != nil {
		return nil, err
	}
	project.ProjectID = strings.TrimSpace(project.ProjectID)
	return &project, nil
}

// Validate checks structural and cross-field rules and reports the first
// violation in manifest order.
func Validate(p *Project) error {
	if p == nil {
		return &services.ManifestError{Kind: services.ManifestMalformed, Detail: "no document"}
	}
	if strings.TrimSpace(p.ProjectID) == "" {
		return &services.ManifestError{Kind: services.ManifestMissingField, Field: "projectId"}
	}
	if err := validate.Struct(p); err != nil {
		return convertValidationError(err)
	}
	for i, ch := range p.Chapters {
		if ch.HasMusic() && ch.MusicVolume == nil {
			return &services.ManifestError{
				Kind:   services.ManifestMissingField,
				Field:  fmt.Sprintf("chapters[%d].musicVolume", i),
				Detail: "required when files.music is set",
			}
		}
		if strings.TrimSpace(ch.Files.Image) == "" {
			return &services.ManifestError{Kind: services.ManifestMissingField, Field: fmt.Sprintf("chapters[%d].files.image", i)}
		}
		if strings.TrimSpace(ch.Files.Speech) == "" {
			return &services.ManifestError{Kind: services.ManifestMissingField, Field: fmt.Sprintf("chapters[%d].files.speech", i)}
		}
	}
	return nil
}

func convertValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return &services.ManifestError{Kind: services.ManifestMalformed, Err: err}
	}
	fe := validationErrs[0]
	kind := services.ManifestInvalidValue
	if fe.Tag() == "required" {
		kind = services.ManifestMissingField
	}
	return &services.ManifestError{
		Kind:   kind,
		Field:  fieldPath(fe.Namespace()),
		Detail: friendlyMessage(fe),
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.IndexByte(namespace, '.'); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", e.Param())
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "excludesall":
		return "must not contain path separators"
	default:
		return "is invalid"
	}
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("syntax error at byte %d", syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "document"
		}
		return fmt.Sprintf("%s: expected %s, got %s", field, typeErr.Type, typeErr.Value)
	}
	return "invalid JSON"
}
