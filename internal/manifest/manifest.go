package manifest

import (
	"strconv"
	"strings"
	"time"
)

// FileName is the manifest location relative to a project root.
const FileName = "manifest.json"

// Project is the validated in-memory form of manifest.json.
type Project struct {
	ProjectID string    `json:"projectId" validate:"required,excludesall=/\\"`
	Metadata  Metadata  `json:"metadata"`
	Chapters  []Chapter `json:"chapters" validate:"required,min=1,dive"`
}

// Metadata carries display-only project information.
type Metadata struct {
	Title string `json:"title"`
}

// Chapter is one narrated segment. Order within Project.Chapters is the
// playback order.
type Chapter struct {
	Title       string   `json:"title"`
	Duration    *float64 `json:"duration" validate:"required,gt=0,lte=86400"`
	Files       Files    `json:"files"`
	MusicVolume *float64 `json:"musicVolume,omitempty" validate:"omitempty,gte=0"`
}

// Files lists chapter inputs relative to the project root.
type Files struct {
	Image  string `json:"image" validate:"required"`
	Speech string `json:"speech" validate:"required"`
	Music  string `json:"music,omitempty"`
}

// DurationSeconds returns the image hold time in seconds.
func (c Chapter) DurationSeconds() float64 {
	if c.Duration == nil {
		return 0
	}
	return *c.Duration
}

// Length returns the chapter duration as a time.Duration.
func (c Chapter) Length() time.Duration {
	return time.Duration(c.DurationSeconds() * float64(time.Second))
}

// HasMusic reports whether the chapter carries a background music bed.
func (c Chapter) HasMusic() bool {
	return strings.TrimSpace(c.Files.Music) != ""
}

// Volume returns the music gain, or 0 when no music is configured.
func (c Chapter) Volume() float64 {
	if c.MusicVolume == nil {
		return 0
	}
	return *c.MusicVolume
}

// DisplayTitle returns the chapter title, falling back to its 1-based position.
func (c Chapter) DisplayTitle(index int) string {
	if title := strings.TrimSpace(c.Title); title != "" {
		return title
	}
	return "Chapter " + strconv.Itoa(index+1)
}

// TotalDuration sums the declared chapter durations.
func (p *Project) TotalDuration() time.Duration {
	var total time.Duration
	for _, ch := range p.Chapters {
		total += ch.Length()
	}
	return total
}
