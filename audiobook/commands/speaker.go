package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
)

func newSpeakerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speaker",
		Short: "Manage the speakers of the project",
	}
	cmd.AddCommand(
		newSpeakerListCmd(app),
		newSpeakerAddCmd(app),
		newSpeakerRenameCmd(app),
		newSpeakerRecolorCmd(app),
		newSpeakerSetCmd(app),
		newSpeakerDeleteCmd(app),
	)
	return cmd
}

func newSpeakerListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List speakers with their unit counts and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}
			units := lo.CountValuesBy(p.Units(), func(u project.Unit) speaker.ID {
				return u.SpeakerID
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tUNITS\tSETTINGS")
			for _, s := range p.Speakers().List() {
				settings, err := json.Marshal(s.Settings)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.ID, s.Name, s.Color, units[s.ID], settings)
			}
			return tw.Flush()
		},
	}
}

func newSpeakerAddCmd(app *App) *cobra.Command {
	var (
		color    string
		settings []string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}
			values, err := parseSettings(settings)
			if err != nil {
				return err
			}
			s, err := p.Speakers().Create(args[0], color, values)
			if err != nil {
				return err
			}
			if err := p.SaveSettings(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added speaker %d (%s)\n", s.ID, s.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "#FFFFFF", "display color as #RRGGBB")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "engine setting as key=value, repeatable")
	return cmd
}

func newSpeakerRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a speaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return modifySpeaker(app, args[0], func(r *speaker.Registry, id speaker.ID) error {
				return r.Rename(id, args[1])
			})
		},
	}
}

func newSpeakerRecolorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recolor <id> <color>",
		Short: "Change the display color of a speaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return modifySpeaker(app, args[0], func(r *speaker.Registry, id speaker.ID) error {
				return r.Recolor(id, args[1])
			})
		},
	}
}

func newSpeakerSetCmd(app *App) *cobra.Command {
	var unset []string
	cmd := &cobra.Command{
		Use:   "set <id> <key=value>...",
		Short: "Change engine settings of a speaker",
		Long: `Change engine settings of a speaker. Values are parsed as JSON when
possible, so use_s2s=true stores a boolean and speaking_rate=1.2 a number.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSettings(args[1:])
			if err != nil {
				return err
			}
			return modifySpeaker(app, args[0], func(r *speaker.Registry, id speaker.ID) error {
				s, ok := r.Get(id)
				if !ok {
					return fmt.Errorf("speaker %d: %w", id, speaker.ErrNotFound)
				}
				settings := lo.Assign(s.Settings, values)
				settings = lo.OmitByKeys(settings, unset)
				return r.UpdateSettings(id, settings)
			})
		},
	}
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "setting to remove, repeatable")
	return cmd
}

func newSpeakerDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a speaker and hand its units to the narrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSpeakerID(args[0])
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			return p.DeleteSpeaker(id)
		},
	}
}

// modifySpeaker applies fn to the registry of the current project and
// persists the settings.
func modifySpeaker(app *App, rawID string, fn func(r *speaker.Registry, id speaker.ID) error) error {
	id, err := parseSpeakerID(rawID)
	if err != nil {
		return err
	}
	p, err := app.Project()
	if err != nil {
		return err
	}
	if err := fn(p.Speakers(), id); err != nil {
		return err
	}
	return p.SaveSettings()
}

// parseSettings turns key=value pairs into settings, decoding JSON values.
func parseSettings(pairs []string) (speaker.Settings, error) {
	settings := speaker.Settings{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value: %w", pair, audiobook.ErrValidation)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		settings[key] = value
	}
	return settings, nil
}
