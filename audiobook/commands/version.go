package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "audiobook, developed by Make it! Chaccha")
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit:  %s\n", app.Version, app.Commit)
			return nil
		},
	}
}
