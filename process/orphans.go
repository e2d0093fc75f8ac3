package process

import (
	"context"
	"errors"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
)

// EncoderProcess is an encoder found running on the system.
type EncoderProcess struct {
	PID     int
	Command string
}

// outputMarker appears in the output path of every recording this tool
// starts, so it identifies our encoders among unrelated ffmpeg processes.
const outputMarker = "Recording_"

// FindEncoderProcesses lists encoder processes writing a recording file.
// These are left behind when the controller dies without stopping its
// encoder.
func FindEncoderProcesses(ctx context.Context, executor exec.CommandExecutor, binary string) ([]EncoderProcess, error) {
	return findEncoderProcesses(ctx, executor, binary, runtime.GOOS)
}

func findEncoderProcesses(ctx context.Context, executor exec.CommandExecutor, binary, goos string) ([]EncoderProcess, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	log := logger.WithComponent("process")
	var processes []EncoderProcess

	switch goos {
	case "darwin", "linux":
		output, err := executor.Output(ctx, "pgrep", "-f", binary+".*"+outputMarker)
		if err != nil {
			// pgrep exits 1 when nothing matches
			var exitErr *osexec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
				return processes, nil
			}
			return nil, err
		}

		for _, pidStr := range strings.Fields(string(output)) {
			pid, err := strconv.Atoi(pidStr)
			if err != nil {
				continue
			}
			args, err := executor.Output(ctx, "ps", "-p", pidStr, "-o", "args=")
			if err != nil {
				continue
			}
			processes = append(processes, EncoderProcess{
				PID:     pid,
				Command: strings.TrimSpace(string(args)),
			})
		}

	case "windows":
		// tasklist cannot show command lines, so ask WMI for them.
		image := filepath.Base(binary)
		if !strings.HasSuffix(strings.ToLower(image), ".exe") {
			image += ".exe"
		}
		output, err := executor.Output(ctx, "wmic", "process", "where", "name='"+image+"'",
			"get", "CommandLine,ProcessId", "/format:csv")
		if err != nil {
			return nil, err
		}
		for line := range strings.Lines(string(output)) {
			// Node,CommandLine,ProcessId; the command line may contain commas.
			fields := strings.Split(strings.TrimSpace(line), ",")
			if len(fields) < 3 {
				continue
			}
			pid, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				continue
			}
			command := strings.Join(fields[1:len(fields)-1], ",")
			if !strings.Contains(command, outputMarker) {
				continue
			}
			processes = append(processes, EncoderProcess{PID: pid, Command: command})
		}
	}

	log.Debug("found encoder processes", "count", len(processes))
	return processes, nil
}

// KillProcess force-kills a process by PID.
func KillProcess(ctx context.Context, executor exec.CommandExecutor, pid int) error {
	return killProcess(ctx, executor, pid, runtime.GOOS)
}

func killProcess(ctx context.Context, executor exec.CommandExecutor, pid int, goos string) error {
	var err error
	switch goos {
	case "darwin", "linux":
		_, _, err = executor.Run(ctx, "kill", "-9", strconv.Itoa(pid))
	case "windows":
		_, _, err = executor.Run(ctx, "taskkill", "/F", "/PID", strconv.Itoa(pid))
	}
	return err
}

// CleanupOrphanedEncoders kills every encoder found by FindEncoderProcesses
// except the one with ownPID (pass 0 when nothing is owned). Returns the
// number of processes killed.
func CleanupOrphanedEncoders(ctx context.Context, executor exec.CommandExecutor, binary string, ownPID int) (int, error) {
	return cleanupOrphanedEncoders(ctx, executor, binary, ownPID, runtime.GOOS)
}

func cleanupOrphanedEncoders(ctx context.Context, executor exec.CommandExecutor, binary string, ownPID int, goos string) (int, error) {
	procs, err := findEncoderProcesses(ctx, executor, binary, goos)
	if err != nil {
		return 0, err
	}

	log := logger.WithComponent("process")
	killed := 0
	for _, proc := range procs {
		if proc.PID == ownPID {
			continue
		}
		log.Info("killing orphaned encoder", "pid", proc.PID, "command", proc.Command)
		if err := killProcess(ctx, executor, proc.PID, goos); err != nil {
			log.Error("failed to kill process", "pid", proc.PID, "error", err)
			continue
		}
		killed++
	}
	return killed, nil
}
