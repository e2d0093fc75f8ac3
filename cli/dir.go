package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/catalog"
)

// NewDirCmd returns the command that prints or changes the recordings directory.
func NewDirCmd(deps *Dependencies) *cobra.Command {
	var set string

	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Show or set the save folder",
		Long: `Print the folder recordings are saved to, creating it if needed.

With --set, remember a different folder. Setting the platform default
clears the override.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cmd.Flags().Changed("set") {
				cfg.SetSaveDir(set)
				if err := cfg.Save(); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
			}

			dir, err := cfg.ResolvedSaveDir()
			if err != nil {
				return err
			}
			if cfg.SaveDir == "" {
				// The platform default is created on first use.
				if dir, err = catalog.ResolveDefaultDirectory(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "Folder to save recordings to")
	return cmd
}
