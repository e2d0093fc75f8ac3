package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/process"
)

// NewDoctorCmd returns the command that checks encoder prerequisites and cleans up orphaned encoders.
func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that recording will work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			f := NewFormatter(out)
			cfg := deps.Config
			executor := deps.executor()

			checker := NewChecker(executor)
			results := checker.CheckAll(ctx, CurrentPrerequisites(cfg.Encoder))
			fmt.Fprint(out, FormatCheckResults(results))
			fmt.Fprintln(out)

			builder := deps.builder()
			sup, err := process.NewSupervisor(process.Config{
				Binary:   cfg.Encoder,
				Builder:  builder,
				Executor: executor,
			})
			if err != nil {
				return err
			}
			defer sup.Close()

			ok := sup.Probe(ctx)
			if ok {
				f.SetupCheck("Encoder", true, cfg.Encoder+" responds to -version")
			} else {
				f.SetupCheck("Encoder", false, cfg.Encoder+" did not run. Install with: "+InstallHint(builder.Platform.OS))
			}

			f.SetupCheck("Capture", true, fmt.Sprintf("%s via %s", builder.Platform.Input, builder.Platform.Backend))
			f.SetupCheck("Display", true, builder.Resolver.Resolution(ctx).String())
			if sup.CanSuspend() {
				f.SetupCheck("Pause", true, "encoder is suspended while paused")
			} else if cfg.PauseWithoutSuspend {
				f.SetupCheck("Pause", true, "bookkeeping only, capture continues while paused")
			} else {
				f.SetupCheck("Pause", false, "not supported on this platform")
			}

			dir, err := cfg.ResolvedSaveDir()
			if err != nil {
				return err
			}
			f.SetupCheck("Save folder", true, dir)

			if cleanup {
				n, err := process.CleanupOrphanedEncoders(ctx, executor, cfg.Encoder, 0)
				if err != nil {
					f.Warning(fmt.Sprintf("orphan cleanup: %v", err))
				} else {
					f.Info(fmt.Sprintf("Killed %d orphaned encoder process(es)", n))
				}
			}

			fmt.Fprintln(out)
			if ok {
				f.Success("Ready to record.")
			} else {
				f.Warning("The encoder is missing; recording will fail.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Kill encoder processes left behind by earlier sessions")
	return cmd
}
