package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/config"
	"github.com/zhubert/screenrec/logger"
	"github.com/zhubert/screenrec/process"
	"github.com/zhubert/screenrec/session"
	"github.com/zhubert/screenrec/tui"
)

type recordFlags struct {
	fps       int
	quality   string
	audio     bool
	dir       string
	container string
	countdown time.Duration
}

// NewRecordCmd returns the command that records the screen until stopped.
func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the screen until stopped",
		Long: `Record the screen to a new file in the save folder.

On a terminal, space pauses and resumes, s stops and q stops and quits.
Without a terminal, recording stops on Ctrl+C or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := recordOptions(cmd, deps.Config, flags)
			if err != nil {
				return err
			}
			countdown := deps.Config.Countdown
			if cmd.Flags().Changed("countdown") {
				countdown = flags.countdown
			}
			return record(cmd, deps, opts, countdown)
		},
	}

	addRecordFlags(cmd, &flags)
	return cmd
}

func addRecordFlags(cmd *cobra.Command, flags *recordFlags) {
	cmd.Flags().IntVar(&flags.fps, "fps", config.DefaultFrameRate, "Frames per second")
	cmd.Flags().StringVar(&flags.quality, "quality", string(config.DefaultQuality), "Quality: high, medium or low")
	cmd.Flags().BoolVar(&flags.audio, "audio", false, "Capture audio from the default input")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "Save folder (default from config)")
	cmd.Flags().StringVar(&flags.container, "container", capture.DefaultContainer, "Container format: mp4 or mkv")
	cmd.Flags().DurationVar(&flags.countdown, "countdown", config.DefaultCountdown, "Delay before recording starts")
}

// recordOptions merges preferences with the flags the user set explicitly.
func recordOptions(cmd *cobra.Command, cfg *config.Config, flags recordFlags) (capture.Options, error) {
	opts, err := cfg.Options()
	if err != nil {
		return capture.Options{}, err
	}

	f := cmd.Flags()
	if f.Changed("fps") {
		opts.FrameRate = flags.fps
	}
	if f.Changed("quality") {
		q, err := capture.ParseQuality(flags.quality)
		if err != nil {
			return capture.Options{}, err
		}
		opts.Quality = q
	}
	if f.Changed("audio") {
		opts.Audio = flags.audio
	}
	if f.Changed("dir") {
		opts.SaveDir = config.ExpandPath(flags.dir)
	}
	if f.Changed("container") {
		opts.Container = flags.container
	}
	if err := opts.Validate(); err != nil {
		return capture.Options{}, err
	}
	if f.Changed("countdown") && flags.countdown < 0 {
		return capture.Options{}, errors.New("countdown must not be negative")
	}
	return opts, nil
}

func record(cmd *cobra.Command, deps *Dependencies, opts capture.Options, countdown time.Duration) error {
	cfg := deps.Config
	log := logger.WithComponent("cli")

	sup, err := process.NewSupervisor(process.Config{
		Binary:             cfg.Encoder,
		Builder:            deps.builder(),
		Executor:           deps.executor(),
		StopTimeout:        cfg.StopTimeout,
		AllowCosmeticPause: cfg.PauseWithoutSuspend,
		EncoderLog:         cfg.EncoderLog,
		Log:                logger.WithComponent("process"),
	})
	if err != nil {
		return err
	}
	defer sup.Close()

	ctrl := session.NewController(session.Config{
		Supervisor:   sup,
		SavedDisplay: cfg.SavedDisplay,
		OnSaved: func(path string) {
			log.Info("recording saved", "path", path)
		},
		Log: logger.WithComponent("session"),
	})
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tui.Run(ctx, ctrl, opts, countdown, InstallHint(runtime.GOOS)); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}
