package capture

import (
	"os"
	"runtime"
)

// Platform describes how the encoder captures the screen on one OS, and
// whether the OS can suspend a running process.
type Platform struct {
	OS string

	// Backend is the ffmpeg input format (x11grab, avfoundation, gdigrab).
	// Empty for platforms without a known capture backend.
	Backend string

	// Input is the video source handed to -i. On darwin the source depends on
	// whether audio is requested, so it is chosen in BuildArgs.
	Input string

	AudioBackend string
	AudioInput   string

	// CanSuspend is true where the encoder can be frozen with SIGSTOP and
	// thawed with SIGCONT. Elsewhere pausing only stops the elapsed clock.
	CanSuspend bool
}

// CurrentPlatform returns the descriptor for the running OS, reading $DISPLAY
// for the X11 source.
func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS, os.Getenv("DISPLAY"))
}

// PlatformFor returns the descriptor for goos. display is the X11 display
// name and only matters on linux; it defaults to ":0".
func PlatformFor(goos, display string) Platform {
	switch goos {
	case "linux":
		if display == "" {
			display = ":0"
		}
		return Platform{
			OS:           goos,
			Backend:      "x11grab",
			Input:        display,
			AudioBackend: "pulse",
			AudioInput:   "default",
			CanSuspend:   true,
		}
	case "darwin":
		return Platform{
			OS:         goos,
			Backend:    "avfoundation",
			CanSuspend: true,
		}
	case "windows":
		return Platform{
			OS:           goos,
			Backend:      "gdigrab",
			Input:        "desktop",
			AudioBackend: "dshow",
			AudioInput:   "audio=virtual-audio-capturer",
			CanSuspend:   false,
		}
	}
	// Unknown OS: no capture backend, the encoder will reject the arguments.
	return Platform{OS: goos}
}
