package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/screenrec/catalog"
	"github.com/zhubert/screenrec/config"
)

// NewListCmd returns the command that lists saved recordings, newest first.
func NewListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List recordings, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(cmd.OutOrStdout())

			dir, err := libraryDir(deps.Config, args)
			if err != nil {
				return err
			}
			files := catalog.New(deps.executor()).List(dir)
			if len(files) == 0 {
				f.Info(fmt.Sprintf("No recordings in %s", dir))
				return nil
			}
			f.RecordingList(dir, files)
			return nil
		},
	}
}

// NewDeleteCmd returns the command that deletes a recording by file name.
func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(args[0])
			if !catalog.New(deps.executor()).Delete(path) {
				return fmt.Errorf("could not delete %s", path)
			}
			NewFormatter(cmd.OutOrStdout()).Success("Deleted " + path)
			return nil
		},
	}
}

// NewOpenCmd returns the command that opens a recording in the default player.
func NewOpenCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a recording with the default player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(args[0])
			if !catalog.New(deps.executor()).Open(cmd.Context(), path) {
				return fmt.Errorf("could not open %s", path)
			}
			return nil
		},
	}
}

// NewFolderCmd returns the command that reveals the recordings directory in the file manager.
func NewFolderCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "folder",
		Short: "Open the save folder in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := libraryDir(deps.Config, nil)
			if err != nil {
				return err
			}
			if !catalog.New(deps.executor()).OpenFolder(cmd.Context(), dir) {
				return fmt.Errorf("could not open %s", dir)
			}
			return nil
		},
	}
}

// libraryDir returns the directory named in args, or the configured save
// directory.
func libraryDir(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return config.ExpandPath(args[0]), nil
	}
	return cfg.ResolvedSaveDir()
}
