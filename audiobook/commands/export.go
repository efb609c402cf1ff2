package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook/export"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		pause  float64
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Join the unit audio into one audiobook file",
		Long: `Join the unit audio into exported_audiobooks/<project>_audiobook_<k>.<ext>
with a pause between adjacent units. The pause defaults to the project's
pause_duration; the format to the configured one (mp3 through ffmpeg, or
native wav).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("format") {
				app.Config.Export.Format = format
			}
			composer, err := app.Composer()
			if err != nil {
				return err
			}

			var opts export.Options
			if cmd.Flags().Changed("pause") {
				d := export.Seconds(pause)
				opts.Pause = &d
			}
			result, err := composer.Export(cmd.Context(), p.Dir(), opts)
			if err != nil {
				return err
			}
			if len(result.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d units without audio: %v\n", len(result.Skipped), result.Skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d units to %s\n", result.Units, result.Path)
			return nil
		},
	}
	cmd.Flags().Float64Var(&pause, "pause", 0, "pause between units in seconds")
	cmd.Flags().StringVar(&format, "format", "", "mp3 or wav")
	return cmd
}
