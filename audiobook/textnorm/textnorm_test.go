package textnorm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplacer(t *testing.T) {
	type testCase struct {
		name     string
		list     []Replacement
		content  string
		expected string
	}

	testCases := []testCase{
		{
			name:     "Whole word",
			list:     []Replacement{{Original: "cat", Replacement: "dog"}},
			content:  "The cat sat.",
			expected: "The dog sat.",
		},
		{
			name:     "Not a substring",
			list:     []Replacement{{Original: "cat", Replacement: "dog"}},
			content:  "concatenate the cat",
			expected: "concatenate the dog",
		},
		{
			name:     "Case sensitive",
			list:     []Replacement{{Original: "cat", Replacement: "dog"}},
			content:  "Cat and cat",
			expected: "Cat and dog",
		},
		{
			name:     "Trailing punctuation in original",
			list:     []Replacement{{Original: "St.", Replacement: "Saint"}},
			content:  "St. Ives and Street.",
			expected: "Saint Ives and Street.",
		},
		{
			name: "Applied in order",
			list: []Replacement{
				{Original: "a", Replacement: "b"},
				{Original: "b", Replacement: "c"},
			},
			content:  "a b",
			expected: "c c",
		},
		{
			name:     "Replacement is literal",
			list:     []Replacement{{Original: "cost", Replacement: "$1"}},
			content:  "the cost",
			expected: "the $1",
		},
		{
			name:     "Non-ASCII last letter",
			list:     []Replacement{{Original: "Zoë", Replacement: "Zoey"}},
			content:  "Zoës book, Zoë's book and Zoë.",
			expected: "Zoës book, Zoey's book and Zoey.",
		},
		{
			name:     "Non-ASCII word not a prefix",
			list:     []Replacement{{Original: "café", Replacement: "coffee shop"}},
			content:  "the cafés opened near the café",
			expected: "the cafés opened near the coffee shop",
		},
		{
			name:     "Non-ASCII first letter",
			list:     []Replacement{{Original: "école", Replacement: "school"}},
			content:  "préécole and école",
			expected: "préécole and school",
		},
		{
			name:     "Skipped match does not hide a later one",
			list:     []Replacement{{Original: "ab", Replacement: "X"}},
			content:  "aab ab",
			expected: "aab X",
		},
		{
			name:     "No list",
			content:  "unchanged",
			expected: "unchanged",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewReplacer(tc.list)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, r.Replace(tc.content))
		})
	}
}

func TestNewReplacerRejectsEmptyOriginal(t *testing.T) {
	_, err := NewReplacer([]Replacement{{Original: "", Replacement: "x"}})
	assert.ErrorIs(t, err, audiobook.ErrValidation)
	assert.ErrorIs(t, err, ErrEmptyOriginal)
}

func TestSanitize(t *testing.T) {
	type testCase struct {
		name     string
		content  string
		expected string
	}

	testCases := []testCase{
		{
			name:     "Strip markup characters",
			content:  `[Hello] *world* <b> "quoted" “curly” back\slash under_score`,
			expected: "Hello world b quoted curly backslash underscore",
		},
		{
			name:     "Dashes and newlines become spaces",
			content:  "well-known\nfact",
			expected: "well known fact",
		},
		{
			name:     "Ellipsis becomes a dash",
			content:  "Wait… what",
			expected: "Wait- what",
		},
		{
			name:     "Abbreviations",
			content:  "Mr. Smith met Mrs. Jones, Ms. Lee and Dr. Who",
			expected: "Mister Smith met Misses Jones, Miss Lee and Doctor Who",
		},
		{
			name:     "Trailing period dropped",
			content:  "It ends here.",
			expected: "It ends here",
		},
		{
			name:     "Periods detached",
			content:  "One. Two.",
			expected: "One . Two",
		},
		{
			name:     "Dot runs dropped",
			content:  "Hmm...",
			expected: "Hmm",
		},
		{
			name:     "Space runs collapsed",
			content:  "a  b   c",
			expected: "a b c",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.expected, Sanitize(tc.content, nil)); diff != "" {
				t.Errorf("Sanitize(%q) mismatch (-want +got):\n%s", tc.content, diff)
			}
		})
	}
}

func TestSanitizeWithLocaleTable(t *testing.T) {
	table := []i18n.Abbreviation{{From: "Dr.", To: "Doktor"}}
	assert.Equal(t, "Doktor Müller", Sanitize("Dr. Müller", table))
}

func TestNormalizer(t *testing.T) {
	r, err := NewReplacer([]Replacement{{Original: "Mister", Replacement: "Sir"}})
	require.NoError(t, err)

	n := Normalizer{Replacer: r, Extras: true}
	assert.Equal(t, "Sir Smith", n.Normalize("Mr. Smith."))

	n.Extras = false
	assert.Equal(t, "Mr. Smith.", n.Normalize("Mr. Smith."))
}

func TestLoadReplacements(t *testing.T) {
	list, err := LoadReplacements("testdata/replacements.json")
	require.NoError(t, err)

	expected := []Replacement{
		{Original: "St.", Replacement: "Saint"},
		{Original: "Xyl", Replacement: "Zile"},
		{Original: "colour", Replacement: "color"},
	}
	if diff := cmp.Diff(expected, list); diff != "" {
		t.Errorf("LoadReplacements mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadReplacementsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadReplacements(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, audiobook.ErrProjectIO))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"x": {"orig_word": "a", "replacement_word": "b"}}`), 0o644))
	_, err = LoadReplacements(bad)
	assert.True(t, errors.Is(err, audiobook.ErrConfig))

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0o644))
	_, err = LoadReplacements(garbage)
	assert.True(t, errors.Is(err, audiobook.ErrConfig))
}

func TestSaveReplacementsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replacements.json")
	list := []Replacement{
		{Original: "one", Replacement: "1"},
		{Original: "two", Replacement: "2"},
	}
	require.NoError(t, SaveReplacements(path, list))

	loaded, err := LoadReplacements(path)
	require.NoError(t, err)
	assert.Equal(t, list, loaded)
}
