// Package segment turns a paragraph-structured manuscript into the ordered
// list of sentences that become synthesis units.
package segment

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/makeitchaccha/audiobook/audiobook"
)

// blankLines matches the separator between two paragraphs: a line terminator
// followed by one or more (possibly whitespace-only) empty lines.
var blankLines = regexp.MustCompile(`\n[ \t\f\v]*(?:\n[ \t\f\v]*)+`)

// Segment splits text into paragraphs on blank lines and returns every
// non-empty line containing at least one letter, trimmed, in manuscript order.
func Segment(text string) []string {
	text = normalizeNewlines(text)

	sentences := make([]string, 0)
	for _, paragraph := range blankLines.Split(text, -1) {
		for _, line := range strings.Split(paragraph, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !hasLetter(line) {
				continue
			}
			sentences = append(sentences, line)
		}
	}
	return sentences
}

// SegmentFile reads a UTF-8 manuscript from path and segments it.
func SegmentFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manuscript %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	return Segment(string(data)), nil
}

// Paragraphs renders sentences back into manuscript form, one per paragraph.
func Paragraphs(sentences []string) string {
	return strings.Join(sentences, "\n\n")
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
