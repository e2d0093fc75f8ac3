package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/logger"
)

// NewLogsCmd returns the command that shows or clears the log files.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show or clear log files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := logger.DefaultLogPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the application log and per-session encoder logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Close()
			count, err := logger.ClearLogs()
			if err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Success(fmt.Sprintf("Removed %d log file(s)", count))
			return nil
		},
	})
	return cmd
}
