// Package commands implements the audiobook command-line interface.
package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook"
)

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "audiobook",
		Short: "Turn a plain-text manuscript into a narrated audiobook",
		Long: `audiobook segments a manuscript into sentences, voices every sentence
with the text-to-speech engine of its speaker and joins the results into
a single audio file.

A project is a directory holding the manuscript, the text-audio map, the
generation settings and one audio file per sentence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.LoadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !app.ShowMetrics || app.Provider == nil {
				return nil
			}
			return printMetrics(cmd.Context(), cmd.OutOrStdout(), app)
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", app.ConfigPath, "path to config")
	root.PersistentFlags().StringVarP(&app.ProjectDir, "project", "p", app.ProjectDir, "project directory")
	root.PersistentFlags().BoolVar(&app.ShowMetrics, "metrics", false, "print collected metrics when the command finishes")

	root.AddCommand(
		newImportCmd(app),
		newUnitsCmd(app),
		newGenerateCmd(app),
		newRegenCmd(app),
		newUpdateCmd(app),
		newDeleteCmd(app),
		newEditCmd(app),
		newAssignCmd(app),
		newMarkRegenCmd(app),
		newResetRegenCmd(app),
		newSpeakerCmd(app),
		newReplaceCmd(app),
		newExportCmd(app),
		newProjectsCmd(app),
		newPrefsCmd(app),
		newVersionCmd(app),
	)
	return root
}

// Execute runs the command tree and releases app's resources.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCmd(app)
	root.SetArgs(args)
	defer app.Close()
	return root.ExecuteContext(ctx)
}

func printMetrics(ctx context.Context, w io.Writer, app *App) error {
	samples, err := app.Provider.Snapshot(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tATTRIBUTES\tVALUE")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Attributes, s.Value)
	}
	return tw.Flush()
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid unit index %q: %w", s, audiobook.ErrValidation)
	}
	return i, nil
}

func parseIndices(args []string) ([]int, error) {
	indices := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := parseIndex(arg)
		if err != nil {
			return nil, err
		}
		indices = append(indices, i)
	}
	return indices, nil
}
