package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/paths"
)

// setupTestHome points HOME at a temp dir and clears overrides.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv(EnvSaveDir, "")
	t.Setenv(EnvEncoder, "")
	t.Setenv(EnvDebug, "")
	paths.Reset()
	t.Cleanup(paths.Reset)
	return home
}

func writeConfig(t *testing.T, home, name, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".screenrec")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	paths.Reset()
	return p
}

func TestLoad_Defaults(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FrameRate != DefaultFrameRate || cfg.Quality != capture.QualityHigh {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Container != "mp4" || cfg.Encoder != "ffmpeg" {
		t.Errorf("unexpected defaults: container=%q encoder=%q", cfg.Container, cfg.Encoder)
	}
	if cfg.StopTimeout != 6*time.Second || cfg.SavedDisplay != 4*time.Second || cfg.Countdown != 3*time.Second {
		t.Errorf("unexpected durations: %v %v %v", cfg.StopTimeout, cfg.SavedDisplay, cfg.Countdown)
	}
	if cfg.PauseWithoutSuspend {
		t.Error("cosmetic pause must be off by default")
	}
	if want := filepath.Join(home, ".screenrec", "config.yaml"); cfg.Path() != want {
		t.Errorf("Path = %q, want %q", cfg.Path(), want)
	}

	dir, err := cfg.ResolvedSaveDir()
	if err != nil {
		t.Fatalf("ResolvedSaveDir: %v", err)
	}
	if !strings.HasPrefix(dir, home) {
		t.Errorf("default save dir %q not under home", dir)
	}
}

func TestLoad_YAML(t *testing.T) {
	home := setupTestHome(t)
	writeConfig(t, home, "config.yaml", `
save_dir: ~/clips
frame_rate: 60
quality: low
audio: true
container: mkv
stop_timeout: 10s
pause_without_suspend: true
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDir != filepath.Join(home, "clips") {
		t.Errorf("SaveDir = %q", cfg.SaveDir)
	}
	if cfg.FrameRate != 60 || cfg.Quality != capture.QualityLow || !cfg.Audio || cfg.Container != "mkv" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.StopTimeout != 10*time.Second {
		t.Errorf("StopTimeout = %v", cfg.StopTimeout)
	}
	if cfg.SavedDisplay != DefaultSavedDisplay {
		t.Errorf("SavedDisplay = %v, want default", cfg.SavedDisplay)
	}
	if !cfg.PauseWithoutSuspend {
		t.Error("PauseWithoutSuspend should be true")
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	want := capture.Options{FrameRate: 60, Quality: capture.QualityLow, Audio: true, SaveDir: filepath.Join(home, "clips"), Container: "mkv"}
	if opts != want {
		t.Errorf("Options = %+v, want %+v", opts, want)
	}
}

func TestLoad_TOMLFallback(t *testing.T) {
	home := setupTestHome(t)
	p := writeConfig(t, home, "config.toml", `
frame_rate = 24
quality = "Medium"
encoder = "/opt/ffmpeg/bin/ffmpeg"
countdown = "0s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path() != p {
		t.Errorf("Path = %q, want %q", cfg.Path(), p)
	}
	if cfg.FrameRate != 24 || cfg.Quality != capture.QualityMedium || cfg.Encoder != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.Countdown != 0 {
		t.Errorf("Countdown = %v, want 0", cfg.Countdown)
	}
}

func TestLoad_YAMLWinsOverTOML(t *testing.T) {
	home := setupTestHome(t)
	writeConfig(t, home, "config.toml", "frame_rate = 24\n")
	writeConfig(t, home, "config.yaml", "frame_rate: 48\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FrameRate != 48 {
		t.Errorf("FrameRate = %d, want 48 from YAML", cfg.FrameRate)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad quality", "quality: ultra\n", "unknown quality"},
		{"negative fps", "frame_rate: -5\n", "frame_rate must be positive"},
		{"bad container", "container: avi\n", "unknown container"},
		{"bad duration", "stop_timeout: soon\n", "stop_timeout"},
		{"negative duration", "countdown: -1s\n", "durations must not be negative"},
		{"bad yaml", "frame_rate: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setupTestHome(t)
			writeConfig(t, home, "config.yaml", tt.content)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	home := setupTestHome(t)
	writeConfig(t, home, "config.yaml", "save_dir: /from/file\n")
	t.Setenv(EnvSaveDir, filepath.Join(home, "env-dir"))
	t.Setenv(EnvEncoder, "ffmpeg7")
	t.Setenv(EnvDebug, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDir != filepath.Join(home, "env-dir") || cfg.Encoder != "ffmpeg7" || !cfg.Debug {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestSave_RoundTripYAML(t *testing.T) {
	home := setupTestHome(t)

	cfg := Default()
	cfg.FrameRate = 15
	cfg.Quality = capture.QualityMedium
	cfg.StopTimeout = 2 * time.Second
	cfg.SetSaveDir(filepath.Join(home, "my-recordings"))
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"frame_rate: 15", "quality: Medium", "stop_timeout: 2s", "my-recordings"} {
		if !strings.Contains(content, want) {
			t.Errorf("saved config missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "saved_display") {
		t.Errorf("default durations should be omitted:\n%s", content)
	}

	entries, _ := os.ReadDir(filepath.Dir(cfg.Path()))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.FrameRate != 15 || loaded.Quality != capture.QualityMedium || loaded.StopTimeout != 2*time.Second {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestSave_KeepsTOMLFormat(t *testing.T) {
	home := setupTestHome(t)
	p := writeConfig(t, home, "config.toml", "frame_rate = 24\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Audio = true
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "audio = true") {
		t.Errorf("expected TOML output, got:\n%s", data)
	}
}

func TestSetSaveDir_DefaultClearsOverride(t *testing.T) {
	setupTestHome(t)
	def, err := paths.RecordingsDir()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(def, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.SetSaveDir(def)
	if cfg.SaveDir != "" {
		t.Errorf("SaveDir = %q, want cleared for the platform default", cfg.SaveDir)
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if !SamePath("/nonexistent/identical", "/nonexistent/identical") {
		t.Error("identical strings should match")
	}
	if !SamePath(target, link) {
		t.Error("symlink should match its target")
	}
	if SamePath(target, t.TempDir()) {
		t.Error("different directories should not match")
	}
	if SamePath(target, "/no/such/path") {
		t.Error("missing path should not match")
	}
}

func TestExpandPath(t *testing.T) {
	home := setupTestHome(t)

	if got := ExpandPath("~/Videos"); got != filepath.Join(home, "Videos") {
		t.Errorf("ExpandPath(~/Videos) = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q, want empty", got)
	}
	if got := ExpandPath("relative"); !filepath.IsAbs(got) {
		t.Errorf("ExpandPath(relative) = %q, want absolute", got)
	}
}
