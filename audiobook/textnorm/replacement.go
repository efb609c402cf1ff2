package textnorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/samber/lo"
)

// Replacement rewrites every whole-word occurrence of Original.
type Replacement struct {
	Original    string `json:"orig_word"`
	Replacement string `json:"replacement_word"`
}

// LoadReplacements reads a replacement list keyed by ordinal. The ordinals
// decide the order in which replacements are applied.
func LoadReplacements(path string) ([]Replacement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replacement list %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}

	var raw map[string]Replacement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode replacement list %s: %w: %w", path, audiobook.ErrConfig, err)
	}

	type ordered struct {
		ordinal int
		Replacement
	}
	entries := make([]ordered, 0, len(raw))
	for key, r := range raw {
		ordinal, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("replacement list %s has non-numeric ordinal %q: %w", path, key, audiobook.ErrConfig)
		}
		entries = append(entries, ordered{ordinal: ordinal, Replacement: r})
	}
	slices.SortFunc(entries, func(a, b ordered) int { return a.ordinal - b.ordinal })

	return lo.Map(entries, func(e ordered, _ int) Replacement { return e.Replacement }), nil
}

// SaveReplacements writes list with ordinals starting at zero.
func SaveReplacements(path string, list []Replacement) error {
	raw := make(map[string]Replacement, len(list))
	for i, r := range list {
		raw[strconv.Itoa(i)] = r
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode replacement list: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write replacement list %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	return nil
}

var ErrEmptyOriginal = errors.New("replacement original must not be empty")

type compiledReplacement struct {
	original    string
	replacement string
	// leading and trailing require a word boundary on that side
	leading  bool
	trailing bool
}

// Replacer applies an ordered replacement list. Matching is case-sensitive and
// bounded by word boundaries wherever the original starts or ends with a word
// character, so "cat" never matches inside "concatenate" and "café" never
// inside "cafés". Letters, digits and marks of every script count as word
// characters.
type Replacer struct {
	compiled []compiledReplacement
}

func NewReplacer(list []Replacement) (*Replacer, error) {
	compiled := make([]compiledReplacement, 0, len(list))
	for i, r := range list {
		if r.Original == "" {
			return nil, fmt.Errorf("replacement %d: %w: %w", i, audiobook.ErrValidation, ErrEmptyOriginal)
		}
		first, _ := utf8.DecodeRuneInString(r.Original)
		last, _ := utf8.DecodeLastRuneInString(r.Original)
		compiled = append(compiled, compiledReplacement{
			original:    r.Original,
			replacement: r.Replacement,
			leading:     isWordRune(first),
			trailing:    isWordRune(last),
		})
	}
	return &Replacer{compiled: compiled}, nil
}

func (r *Replacer) Replace(text string) string {
	for _, c := range r.compiled {
		text = c.apply(text)
	}
	return text
}

func (c compiledReplacement) apply(text string) string {
	var b strings.Builder
	copied, replaced := 0, false
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], c.original)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(c.original)
		if !c.bounded(text, start, end) {
			_, size := utf8.DecodeRuneInString(text[start:])
			from = start + size
			continue
		}
		b.WriteString(text[copied:start])
		b.WriteString(c.replacement)
		copied, from, replaced = end, end, true
	}
	if !replaced {
		return text
	}
	b.WriteString(text[copied:])
	return b.String()
}

// bounded reports whether text[start:end] is not part of a longer word.
func (c compiledReplacement) bounded(text string, start, end int) bool {
	if c.leading && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if c.trailing && end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
