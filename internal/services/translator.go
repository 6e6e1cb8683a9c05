package services

import (
	"context"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// BatchResult is the translation of one batch, in input order.
type BatchResult struct {
	Lines []string
	// Degraded marks entries that kept their original text because the
	// provider refused to translate them.
	Degraded []bool
}

// DegradedCount returns how many entries kept their original text.
func (r BatchResult) DegradedCount() int {
	n := 0
	for _, d := range r.Degraded {
		if d {
			n++
		}
	}
	return n
}

// Translator translates subtitle text into the target language of the config it
// was built with. A Translator is never reconfigured; a new config means a new
// Translator.
type Translator interface {
	// TranslateBatch returns exactly one translation per input text, in order.
	TranslateBatch(ctx context.Context, texts []string) (BatchResult, error)

	// Config returns the request configuration the translator is bound to.
	Config() models.TranslationRequestConfig
}

// TranslatorFactory builds translators for request configurations.
type TranslatorFactory interface {
	New(ctx context.Context, cfg models.TranslationRequestConfig) (Translator, error)
}
