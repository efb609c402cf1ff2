package commands

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/project"
	"github.com/makeitchaccha/audiobook/audiobook/segment"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/makeitchaccha/audiobook/audiobook/textnorm"
)

func newImportCmd(app *App) *cobra.Command {
	var (
		replacements string
		extras       bool
		pause        float64
	)
	cmd := &cobra.Command{
		Use:   "import <manuscript> [directory]",
		Short: "Create a project from a plain-text manuscript",
		Long: `Create a project from a plain-text manuscript. The manuscript is split
into sentences, optionally normalized and stored with default generation
settings. The directory defaults to --project.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.ProjectDir
			if len(args) == 2 {
				dir = args[1]
			}
			if dir == "" {
				return fmt.Errorf("no project directory given: %w", audiobook.ErrValidation)
			}

			opts := project.CreateOptions{PauseDuration: app.Config.Generation.PauseDuration}
			if cmd.Flags().Changed("pause") {
				opts.PauseDuration = pause
			}
			if replacements != "" || extras {
				normalizer := &textnorm.Normalizer{Extras: extras, Abbreviations: app.Abbreviations()}
				if replacements != "" {
					list, err := textnorm.LoadReplacements(replacements)
					if err != nil {
						return err
					}
					if normalizer.Replacer, err = textnorm.NewReplacer(list); err != nil {
						return err
					}
				}
				opts.Normalizer = normalizer
			}

			p, err := project.Import(dir, args[0], opts)
			if err != nil {
				return err
			}
			app.touch(cmd.Context(), p)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d units into %s\n", p.Len(), p.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&replacements, "replacements", "", "replacement list applied to every sentence")
	cmd.Flags().BoolVar(&extras, "extras", false, "also strip symbols, expand abbreviations and split periods")
	cmd.Flags().Float64Var(&pause, "pause", 0, "pause between units in seconds")
	return cmd
}

func newUnitsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List the units of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tSPEAKER\tGENERATED\tREGEN\tSENTENCE")
			for _, u := range p.Units() {
				s := p.Speakers().Resolve(u.SpeakerID)
				fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\n", u.Index, s.Name, u.Generated, u.Regen, u.Sentence)
			}
			return tw.Flush()
		},
	}
}

func newUpdateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update [text-file]",
		Short: "Reconcile the project with an edited text",
		Long: `Reconcile the project with an edited text, by default the project's
book_text.txt. Sentences that still appear keep their audio, even when they
moved; audio of removed sentences is deleted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}
			path := p.Path(project.BookTextFile)
			if len(args) == 1 {
				path = args[0]
			}
			sentences, err := segment.SegmentFile(path)
			if err != nil {
				return err
			}
			result, err := p.Update(sentences)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Matched %d, new %d, removed %d, renamed %d audio files\n",
				result.Matched, result.Fresh, result.Removed, result.Renamed)
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <index>...",
		Short: "Delete units and their audio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := parseIndices(args)
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			if err := p.Delete(indices...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d units, %d remain\n", len(indices), p.Len())
			return nil
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <index> <text>...",
		Short: "Change the sentence of a unit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			if err := p.UpdateSentence(i, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			return p.WriteBookText()
		},
	}
}

func newAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <speaker-id> <index>...",
		Short: "Assign units to a speaker",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSpeakerID(args[0])
			if err != nil {
				return err
			}
			indices, err := parseIndices(args[1:])
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			for _, i := range indices {
				if err := p.AssignSpeaker(i, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newMarkRegenCmd(app *App) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "mark-regen <index>...",
		Short: "Flag units for bulk regeneration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := parseIndices(args)
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			for _, i := range indices {
				if err := p.SetRegen(i, !unset); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unset, "clear", false, "clear the flag instead of setting it")
	return cmd
}

func newResetRegenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-regen",
		Short: "Clear the regeneration flag of every unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Project()
			if err != nil {
				return err
			}
			return p.ResetRegen()
		},
	}
}

func newReplaceCmd(app *App) *cobra.Command {
	var extras bool
	cmd := &cobra.Command{
		Use:   "replace <replacements.json>",
		Short: "Apply a word replacement list to every sentence",
		Long: `Apply a word replacement list to every sentence. Changed units lose
their generated flag and are voiced again by the next continue run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := textnorm.LoadReplacements(args[0])
			if err != nil {
				return err
			}
			p, err := app.Project()
			if err != nil {
				return err
			}
			changed, err := p.ApplyReplacements(list, extras, app.Abbreviations())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Changed %d units\n", len(changed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&extras, "extras", false, "also strip symbols, expand abbreviations and split periods")
	return cmd
}

func parseSpeakerID(s string) (speaker.ID, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid speaker id %q: %w", s, audiobook.ErrValidation)
	}
	return speaker.ID(id), nil
}
