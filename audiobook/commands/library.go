package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newProjectsCmd(app *App) *cobra.Command {
	var runs uint64
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects recorded in the project library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projects, runRepo, err := app.Library(ctx)
			if err != nil {
				return err
			}
			if !app.Config.Database.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "The project library is disabled, enable [database] in the config.")
				return nil
			}

			entries, err := projects.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUNITS\tGENERATED\tOPENED\tDIRECTORY")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.Name, e.Units, e.Generated, e.OpenedAt.Format(time.DateTime), e.Directory)
				if runs == 0 {
					continue
				}
				history, err := runRepo.ListByProject(ctx, e.Directory, runs)
				if err != nil {
					return err
				}
				for _, r := range history {
					fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\t%s %s\n", r.Mode, r.Total, r.Done, r.StartedAt.Format(time.DateTime), r.Status, r.ID)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Uint64Var(&runs, "runs", 0, "also show the latest n generation runs of every project")
	return cmd
}
