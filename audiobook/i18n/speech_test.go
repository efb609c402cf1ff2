package i18n

import (
	"fmt"
	"testing"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSpeechResources(t *testing.T) {
	srs, err := LoadSpeechResources("../../locales/speech/")
	if err != nil {
		t.Fatalf("Failed to load speech resources: %v", err)
	}

	if len(srs.genericResources) == 0 {
		t.Fatal("No speech resources loaded")
	}

	for locale, resource := range srs.genericResources {
		t.Run(fmt.Sprintf("locale_%s", locale), func(t *testing.T) {
			errs := validateResource(resource, "SpeechResource")
			if len(errs) > 0 {
				for _, e := range errs {
					t.Error(e)
				}
			}
		})
	}
}

func TestAbbreviations(t *testing.T) {
	srs, err := LoadSpeechResources("../../locales/speech/")
	require.NoError(t, err)

	en := srs.Abbreviations("en-US")
	assert.Contains(t, en, Abbreviation{From: "Dr.", To: "Doctor"})

	// en-GB is not shipped, the generic "en" resource is used
	assert.Equal(t, srs.Abbreviations("en"), srs.Abbreviations("en-GB"))

	de := srs.Abbreviations("de-DE")
	assert.Contains(t, de, Abbreviation{From: "Dr.", To: "Doktor"})

	assert.Equal(t, DefaultAbbreviations, srs.Abbreviations("xx-YY"))

	var nilResources *SpeechResources
	assert.Equal(t, DefaultAbbreviations, nilResources.Abbreviations("en-US"))
}

func TestLoadSpeechResourcesRejectsEmptyFields(t *testing.T) {
	_, err := LoadSpeechResources("testdata/speech-invalid/")
	require.Error(t, err)
	assert.ErrorIs(t, err, audiobook.ErrConfig)
	assert.Contains(t, err.Error(), "SpeechResource(en).Abbreviations[1].To")
}
