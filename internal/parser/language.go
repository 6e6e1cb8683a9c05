package parser

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// detectionSample caps how many cues are inspected when guessing the source language.
const detectionSample = 200

// DetectLanguage guesses the ISO 639-1 code of the subtitle text by majority
// vote over its cues. It returns false when no cue could be classified.
func DetectLanguage(blocks []models.SubtitleBlock) (string, bool) {
	votes := make(map[string]int)
	seen := 0
	for _, b := range blocks {
		if seen >= detectionSample {
			break
		}
		if !b.Translatable() {
			continue
		}
		text := PlainText(b.Text())
		if len([]rune(text)) < 3 {
			continue
		}
		seen++
		info := whatlanggo.Detect(text)
		code := info.Lang.Iso6391()
		if code == "" {
			continue
		}
		votes[code]++
	}

	var top string
	var topCount int
	for code, count := range votes {
		if count > topCount || (count == topCount && code < top) {
			top, topCount = code, count
		}
	}
	return top, topCount > 0
}

// LanguageName returns the English name of a BCP 47 language code, or the
// code itself when it cannot be resolved.
func LanguageName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// ValidLanguageCode reports whether code parses as a BCP 47 tag.
func ValidLanguageCode(code string) bool {
	_, err := language.Parse(code)
	return err == nil && code != ""
}
