// Package textnorm rewrites unit text before synthesis: a word-bounded
// replacement list and the optional extras sanitization.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/makeitchaccha/audiobook/audiobook/i18n"
)

const sentinel = "\x00"

var (
	stripper = strings.NewReplacer(
		"[", "", "]", "", "*", "", `\`, "", "<", "", ">", "", "_", "",
		`"`, "", "“", "", "”", "",
	)
	spacer    = strings.NewReplacer("\n", " ", "-", " ")
	ellipsis  = strings.NewReplacer("…", "-")
	spaceRuns = regexp.MustCompile(` {2,5}`)
)

// Sanitize runs the extras pipeline. A nil abbreviation table falls back to
// i18n.DefaultAbbreviations.
func Sanitize(text string, abbreviations []i18n.Abbreviation) string {
	if abbreviations == nil {
		abbreviations = i18n.DefaultAbbreviations
	}

	text = stripper.Replace(text)
	text = spacer.Replace(text)
	text = ellipsis.Replace(text)
	text = ExpandAbbreviations(text, abbreviations)
	text = splitPeriods(text)
	return spaceRuns.ReplaceAllString(text, " ")
}

func ExpandAbbreviations(text string, abbreviations []i18n.Abbreviation) string {
	for _, a := range abbreviations {
		if a.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, a.From, a.To)
	}
	return text
}

// splitPeriods detaches every period into its own token, dropping tokens that
// are empty or nothing but a period.
func splitPeriods(text string) string {
	tokens := strings.Split(strings.ReplaceAll(text, ".", sentinel+"."), sentinel)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" || token == "." {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// Normalizer combines the extras pipeline with a replacement list. Extras run
// first.
type Normalizer struct {
	Replacer      *Replacer
	Extras        bool
	Abbreviations []i18n.Abbreviation
}

func (n Normalizer) Normalize(text string) string {
	if n.Extras {
		text = Sanitize(text, n.Abbreviations)
	}
	if n.Replacer != nil {
		text = n.Replacer.Replace(text)
	}
	return text
}
