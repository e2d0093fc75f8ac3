package cli

import (
	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/config"
	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Dependencies are shared by every command.
type Dependencies struct {
	Config   *config.Config
	Executor exec.CommandExecutor
}

func (d *Dependencies) executor() exec.CommandExecutor {
	if d.Executor == nil {
		return exec.GetDefaultExecutor()
	}
	return d.Executor
}

// builder resolves the display through the injected executor.
func (d *Dependencies) builder() *capture.Builder {
	return &capture.Builder{
		Platform: capture.CurrentPlatform(),
		Resolver: capture.NewSystemResolver(d.executor()),
	}
}

// NewRootCmd returns the screenrec root command with every subcommand attached.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "screenrec",
		Short:         "Record the screen with FFmpeg",
		Long:          "screenrec records the desktop to a video file by driving an FFmpeg process, and manages the recordings it produced.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetDebug(debug || deps.Config.Debug)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewOpenCmd(deps))
	rootCmd.AddCommand(NewFolderCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewDirCmd(deps))
	rootCmd.AddCommand(NewLogsCmd())

	return rootCmd
}
