package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// Chapter describes one chapter of a fixture project.
type Chapter struct {
	Title       string
	Duration    float64
	Music       bool
	MusicVolume float64
	// SkipImage leaves the image file off disk while still listing it.
	SkipImage bool
}

// WriteProject creates a project root containing manifest.json and
// placeholder media for each chapter, and returns the root.
func WriteProject(t testing.TB, projectID string, chapters ...Chapter) string {
	t.Helper()

	root := t.TempDir()
	entries := make([]map[string]any, 0, len(chapters))
	for i, ch := range chapters {
		files := map[string]any{
			"image":  fmt.Sprintf("img/%d.png", i),
			"speech": fmt.Sprintf("audio/%d.mp3", i),
		}
		if !ch.SkipImage {
			WriteFile(t, filepath.Join(root, "img", fmt.Sprintf("%d.png", i)), 64)
		}
		WriteFile(t, filepath.Join(root, "audio", fmt.Sprintf("%d.mp3", i)), 64)
		entry := map[string]any{
			"title":    ch.Title,
			"duration": ch.Duration,
			"files":    files,
		}
		if ch.Music {
			files["music"] = fmt.Sprintf("audio/bed-%d.mp3", i)
			WriteFile(t, filepath.Join(root, "audio", fmt.Sprintf("bed-%d.mp3", i)), 64)
			entry["musicVolume"] = ch.MusicVolume
		}
		entries = append(entries, entry)
	}

	doc := map[string]any{
		"projectId": projectID,
		"metadata":  map[string]any{"title": "Fixture " + projectID},
		"chapters":  entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "manifest.json"), data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return root
}
