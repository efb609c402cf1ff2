package commands

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook"
)

func newPrefsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write user interface preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one or every preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := audiobook.LoadPreferences(app.Config.Preferences.Path)
			if err != nil {
				return err
			}
			var value any = prefs
			if len(args) == 1 {
				v, ok := prefs[args[0]]
				if !ok {
					return fmt.Errorf("preference %q is not set: %w", args[0], audiobook.ErrValidation)
				}
				value = v
			}
			data, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}, &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Set preferences; values are parsed as JSON when possible",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSettings(args)
			if err != nil {
				return err
			}
			prefs, err := audiobook.LoadPreferences(app.Config.Preferences.Path)
			if err != nil {
				return err
			}
			return audiobook.SavePreferences(app.Config.Preferences.Path, lo.Assign(prefs, audiobook.Preferences(values)))
		},
	})
	return cmd
}
