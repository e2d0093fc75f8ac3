package capture

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

var testRes = Resolution{Width: 2560, Height: 1440}

func TestQualityCRF(t *testing.T) {
	tests := []struct {
		quality Quality
		want    string
	}{
		{QualityHigh, "18"},
		{QualityMedium, "23"},
		{QualityLow, "28"},
		{Quality("Ultra"), "28"},
		{Quality(""), "28"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			if got := tt.quality.CRF(); got != tt.want {
				t.Errorf("CRF() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseQuality(t *testing.T) {
	for _, in := range []string{"high", "HIGH", "High"} {
		q, err := ParseQuality(in)
		if err != nil {
			t.Fatalf("ParseQuality(%q): %v", in, err)
		}
		if q != QualityHigh {
			t.Errorf("ParseQuality(%q) = %q, want High", in, q)
		}
	}
	if _, err := ParseQuality("best"); err == nil {
		t.Error("ParseQuality(best) should fail")
	}
}

func TestBuildArgs_Linux(t *testing.T) {
	p := PlatformFor("linux", ":1")
	opts := Options{FrameRate: 30, Quality: QualityHigh, Audio: true}

	got := BuildArgs(p, opts, testRes, "/tmp/recs/out.mp4")
	want := []string{
		"-f", "x11grab", "-r", "30", "-s", "2560x1440", "-i", ":1",
		"-f", "pulse", "-i", "default",
		"-c:v", "libx264", "-crf", "18", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-y", "/tmp/recs/out.mp4",
	}
	if !slices.Equal(got, want) {
		t.Errorf("BuildArgs linux:\n got  %v\n want %v", got, want)
	}
}

func TestBuildArgs_LinuxDefaultDisplay(t *testing.T) {
	p := PlatformFor("linux", "")
	got := BuildArgs(p, Options{FrameRate: 15, Quality: QualityLow}, testRes, "out.mkv")
	if i := slices.Index(got, "-i"); i < 0 || got[i+1] != ":0" {
		t.Errorf("expected default display :0, got %v", got)
	}
	if slices.Contains(got, "pulse") || slices.Contains(got, "-c:a") {
		t.Errorf("audio flags present with audio disabled: %v", got)
	}
}

func TestBuildArgs_Darwin(t *testing.T) {
	p := PlatformFor("darwin", "")

	withAudio := BuildArgs(p, Options{FrameRate: 60, Quality: QualityMedium, Audio: true}, testRes, "o.mp4")
	if want := []string{"-f", "avfoundation", "-r", "60", "-i", "1:0"}; !slices.Equal(withAudio[:6], want) {
		t.Errorf("darwin input with audio = %v, want prefix %v", withAudio, want)
	}
	if slices.Contains(withAudio, "-s") {
		t.Error("darwin capture should not pass -s")
	}

	noAudio := BuildArgs(p, Options{FrameRate: 60, Quality: QualityMedium}, testRes, "o.mp4")
	if noAudio[5] != "1:none" {
		t.Errorf("darwin input without audio = %q, want 1:none", noAudio[5])
	}
}

func TestBuildArgs_Windows(t *testing.T) {
	p := PlatformFor("windows", "")
	got := BuildArgs(p, Options{FrameRate: 24, Quality: QualityLow, Audio: true}, testRes, `C:\out.mp4`)
	want := []string{
		"-f", "gdigrab", "-r", "24", "-i", "desktop",
		"-f", "dshow", "-i", "audio=virtual-audio-capturer",
	}
	if !slices.Equal(got[:len(want)], want) {
		t.Errorf("windows inputs = %v, want prefix %v", got, want)
	}
}

func TestBuildArgs_UnknownPlatform(t *testing.T) {
	p := PlatformFor("plan9", "")
	got := BuildArgs(p, Options{FrameRate: 30, Quality: QualityHigh}, testRes, "o.mp4")
	if got[0] != "-c:v" {
		t.Errorf("unknown platform should have no input flags, got %v", got)
	}
	if got[len(got)-1] != "o.mp4" {
		t.Errorf("output path should be last, got %v", got)
	}
}

func TestBuildArgs_Deterministic(t *testing.T) {
	p := PlatformFor("linux", ":0")
	opts := Options{FrameRate: 30, Quality: QualityHigh, Audio: true, SaveDir: "/tmp"}

	first := BuildArgs(p, opts, testRes, "/tmp/a.mp4")
	first[0] = "mutated"
	second := BuildArgs(p, opts, testRes, "/tmp/a.mp4")
	third := BuildArgs(p, opts, testRes, "/tmp/a.mp4")

	if second[0] != "-f" {
		t.Error("mutating a result must not affect later builds")
	}
	if !slices.Equal(second, third) {
		t.Errorf("BuildArgs not deterministic:\n%v\n%v", second, third)
	}
}

func TestBuilder_UsesResolver(t *testing.T) {
	b := &Builder{Platform: PlatformFor("linux", ":0"), Resolver: StaticResolver{Width: 1280, Height: 720}}
	got := b.Build(context.Background(), Options{FrameRate: 30, Quality: QualityHigh}, "o.mp4")
	if i := slices.Index(got, "-s"); i < 0 || got[i+1] != "1280x720" {
		t.Errorf("expected -s 1280x720, got %v", got)
	}
}

func TestOutputFileName(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 9, 7, 3, 0, time.Local)
	if got, want := OutputFileName(ts, "mp4"), "Recording_2024-03-05_09-07-03.mp4"; got != want {
		t.Errorf("OutputFileName = %q, want %q", got, want)
	}

	opts := Options{SaveDir: "/tmp/recs"}
	got := OutputPath(opts, ts)
	if filepath.Dir(got) != "/tmp/recs" || !strings.HasSuffix(got, ".mp4") {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{FrameRate: 30, Quality: QualityHigh, SaveDir: "/tmp"}, false},
		{"mkv", Options{FrameRate: 30, SaveDir: "/tmp", Container: "mkv"}, false},
		{"zero fps", Options{FrameRate: 0, SaveDir: "/tmp"}, true},
		{"negative fps", Options{FrameRate: -5, SaveDir: "/tmp"}, true},
		{"no dir", Options{FrameRate: 30}, true},
		{"bad container", Options{FrameRate: 30, SaveDir: "/tmp", Container: "avi"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlatformCapabilities(t *testing.T) {
	tests := []struct {
		goos       string
		canSuspend bool
		backend    string
	}{
		{"linux", true, "x11grab"},
		{"darwin", true, "avfoundation"},
		{"windows", false, "gdigrab"},
		{"plan9", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			p := PlatformFor(tt.goos, "")
			if p.CanSuspend != tt.canSuspend {
				t.Errorf("CanSuspend = %v, want %v", p.CanSuspend, tt.canSuspend)
			}
			if p.Backend != tt.backend {
				t.Errorf("Backend = %q, want %q", p.Backend, tt.backend)
			}
		})
	}
}
