package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"chapterreel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CHAPTERREEL_OUTPUT_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".local", "share", "chapterreel", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "Videos", "chapterreel") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Pipeline.Concurrency != 1 {
		t.Fatalf("expected sequential rendering by default, got concurrency %d", cfg.Pipeline.Concurrency)
	}
	if !cfg.Pipeline.LockProject {
		t.Fatal("expected project locking enabled by default")
	}
	if cfg.Encoder.MaxZoom != 1.5 {
		t.Fatalf("unexpected max zoom: %v", cfg.Encoder.MaxZoom)
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.LogDir, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.ScratchDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "chapterreel.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Encoder struct {
			Width     int    `toml:"width"`
			Height    int    `toml:"height"`
			Container string `toml:"container"`
		} `toml:"encoder"`
		Pipeline struct {
			Concurrency int `toml:"concurrency"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Encoder.Width = 1280
	custom.Encoder.Height = 720
	custom.Encoder.Container = ".MKV"
	custom.Pipeline.Concurrency = 3
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("CHAPTERREEL_OUTPUT_DIR", "")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.Encoder.Width != 1280 || cfg.Encoder.Height != 720 {
		t.Fatalf("unexpected geometry %dx%d", cfg.Encoder.Width, cfg.Encoder.Height)
	}
	if cfg.Encoder.Container != "mkv" {
		t.Fatalf("expected container normalized to mkv, got %q", cfg.Encoder.Container)
	}
	if cfg.Pipeline.Concurrency != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.Pipeline.Concurrency)
	}
	if got := cfg.ArtifactName("demo"); got != "video-demo.mkv" {
		t.Fatalf("unexpected artifact name %q", got)
	}
	// Frame rate was not set in the file so the default survives decoding.
	if cfg.Encoder.FrameRate != config.Default().Encoder.FrameRate {
		t.Fatalf("unexpected frame rate %d", cfg.Encoder.FrameRate)
	}
}

func TestEnvOverridesOutputDirAndFFmpeg(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHAPTERREEL_OUTPUT_DIR", filepath.Join(tempDir, "env-out"))
	t.Setenv("CHAPTERREEL_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "env-out") {
		t.Errorf("expected output dir from env, got %q", cfg.Paths.OutputDir)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("expected ffmpeg binary from env, got %q", cfg.FFmpegBinary())
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "max_zoom") {
		t.Fatalf("sample config missing encoder settings: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
	if !strings.Contains(cfg.Paths.ScratchDir, "chapterreel") {
		t.Fatalf("expected scratch dir to contain chapterreel, got %q", cfg.Paths.ScratchDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.Pipeline.Concurrency = 0 }},
		{"odd width", func(c *config.Config) { c.Encoder.Width = 1281 }},
		{"zero frame rate", func(c *config.Config) { c.Encoder.FrameRate = 0 }},
		{"zoom below one", func(c *config.Config) { c.Encoder.MaxZoom = 0.9 }},
		{"negative speech gain", func(c *config.Config) { c.Encoder.SpeechGain = -1 }},
		{"unknown container", func(c *config.Config) { c.Encoder.Container = "avi" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
