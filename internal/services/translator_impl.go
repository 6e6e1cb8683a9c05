package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/client"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/parser"
)

// batchReply is the JSON object a model must answer a batch prompt with.
type batchReply struct {
	TranslatedLines []string `json:"translated_lines" jsonschema:"description=One translation per input line, in the same order"`
}

// batchPrompt is the user message of a batch call.
type batchPrompt struct {
	TargetLanguage string   `json:"target_language"`
	Lines          []string `json:"lines"`
}

var batchReplySchema = func() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&batchReply{})
}()

// DefaultTranslator translates through a client.Generator under a Retryer.
type DefaultTranslator struct {
	generator client.Generator
	retryer   *Retryer
	cfg       models.TranslationRequestConfig
	system    string
}

// NewTranslator binds generator to cfg. limiter may be nil.
func NewTranslator(generator client.Generator, cfg models.TranslationRequestConfig, limiter RateLimiter) *DefaultTranslator {
	return &DefaultTranslator{
		generator: generator,
		retryer:   NewRetryer(cfg.Retry, limiter),
		cfg:       cfg,
		system:    systemPrompt(cfg),
	}
}

// Config returns the request configuration the translator is bound to.
func (t *DefaultTranslator) Config() models.TranslationRequestConfig {
	return t.cfg
}

// TranslateBatch sends all texts in one call and expects the same number of
// lines back. When the reply is unusable, or the provider blocks the batch, each
// text is retried on its own so that only the refused ones stay untranslated.
func (t *DefaultTranslator) TranslateBatch(ctx context.Context, texts []string) (BatchResult, error) {
	result := BatchResult{
		Lines:    make([]string, len(texts)),
		Degraded: make([]bool, len(texts)),
	}
	if len(texts) == 0 {
		return result, nil
	}
	logger := config.GetLogger()

	prompt, err := json.Marshal(batchPrompt{TargetLanguage: t.cfg.TargetLanguage, Lines: texts})
	if err != nil {
		return result, fmt.Errorf("encode batch prompt: %w", err)
	}

	raw, err := Do(ctx, t.retryer, "batch", func(ctx context.Context) (string, error) {
		return t.generator.Generate(ctx, client.GenerateRequest{
			Model:      t.cfg.Model,
			System:     t.system,
			Prompt:     string(prompt),
			Params:     t.cfg.Generation,
			Schema:     batchReplySchema,
			SchemaName: "translated_lines",
		})
	})
	switch {
	case err == nil:
		lines, perr := parseBatchReply(raw, len(texts))
		if perr == nil {
			copy(result.Lines, lines)
			return result, nil
		}
		logger.Warn().Err(perr).Int("lines", len(texts)).Msg("Unusable batch reply, translating lines one by one")
	case apperrors.Classify(err) == apperrors.KindSafetyBlocked:
		if len(texts) == 1 {
			result.Lines[0] = texts[0]
			result.Degraded[0] = true
			return result, nil
		}
		logger.Warn().Err(err).Int("lines", len(texts)).Msg("Batch blocked by provider, translating lines one by one")
	default:
		return result, err
	}

	for i, text := range texts {
		line, degraded, err := t.translateOne(ctx, text)
		if err != nil {
			return result, err
		}
		result.Lines[i] = line
		result.Degraded[i] = degraded
	}
	return result, nil
}

// translateOne translates a single text with a plain prompt. A safety block
// returns the original text flagged as degraded.
func (t *DefaultTranslator) translateOne(ctx context.Context, text string) (string, bool, error) {
	prompt := fmt.Sprintf("Translate the following subtitle text to %s. Reply with the translation only.\n\n%s",
		t.cfg.TargetLanguage, text)

	out, err := Do(ctx, t.retryer, "single", func(ctx context.Context) (string, error) {
		reply, err := t.generator.Generate(ctx, client.GenerateRequest{
			Model:  t.cfg.Model,
			System: t.system,
			Prompt: prompt,
			Params: t.cfg.Generation,
		})
		if err != nil {
			return "", err
		}
		reply = parser.NormalizeCueText(stripCodeFence(reply))
		if reply == "" {
			return "", errors.New("empty translation")
		}
		return reply, nil
	})
	if err != nil {
		if apperrors.Classify(err) == apperrors.KindSafetyBlocked {
			logger := config.GetLogger()
			logger.Warn().Err(err).Msg("Line blocked by provider, keeping original text")
			return text, true, nil
		}
		return "", false, err
	}
	return out, false, nil
}

func systemPrompt(cfg models.TranslationRequestConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional subtitle translator. Translate subtitle lines into %s.\n", cfg.TargetLanguage)
	b.WriteString("Keep line breaks inside each line, HTML-like tags such as <i> and ASS override blocks such as {\\an8} exactly where they are.\n")
	b.WriteString("Do not merge, split, reorder or comment on lines.\n")
	b.WriteString(`Batches arrive as JSON {"target_language": ..., "lines": [...]}; answer with JSON {"translated_lines": [...]} holding exactly one entry per input line.`)
	if desc := strings.TrimSpace(cfg.Description); desc != "" {
		b.WriteString("\n\nContext about the media being translated:\n")
		b.WriteString(desc)
	}
	return b.String()
}

// parseBatchReply decodes a batch answer and checks it has want lines.
// Both the translated_lines object and a bare JSON array are accepted.
func parseBatchReply(raw string, want int) ([]string, error) {
	body := stripCodeFence(raw)

	var reply batchReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil || reply.TranslatedLines == nil {
		var lines []string
		if aerr := json.Unmarshal([]byte(body), &lines); aerr != nil {
			if err == nil {
				err = errors.New("missing translated_lines")
			}
			return nil, fmt.Errorf("decode batch reply: %w", err)
		}
		reply.TranslatedLines = lines
	}
	if got := len(reply.TranslatedLines); got != want {
		return nil, fmt.Errorf("batch reply has %d lines, want %d", got, want)
	}
	for i, line := range reply.TranslatedLines {
		reply.TranslatedLines[i] = parser.NormalizeCueText(line)
	}
	return reply.TranslatedLines, nil
}

// stripCodeFence removes a surrounding markdown code fence, with or without a language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// DefaultTranslatorFactory builds a generator per request config. Translators
// built for the same minimum interval share one rate limiter.
type DefaultTranslatorFactory struct {
	httpClient   *http.Client
	baseURLs     map[string]string
	newGenerator func(ctx context.Context, opts client.GeneratorOptions) (client.Generator, error)

	mu       sync.Mutex
	limiters map[time.Duration]RateLimiter
}

// NewTranslatorFactory creates a factory. baseURLs maps provider names to API
// base URLs; providers without an entry use their SDK default.
func NewTranslatorFactory(httpClient *http.Client, baseURLs map[string]string) *DefaultTranslatorFactory {
	return &DefaultTranslatorFactory{
		httpClient:   httpClient,
		baseURLs:     baseURLs,
		newGenerator: client.NewGenerator,
		limiters:     make(map[time.Duration]RateLimiter),
	}
}

// New builds a translator for cfg.
func (f *DefaultTranslatorFactory) New(ctx context.Context, cfg models.TranslationRequestConfig) (Translator, error) {
	generator, err := f.newGenerator(ctx, client.GeneratorOptions{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		BaseURL:    f.baseURLs[cfg.Provider],
		HTTPClient: f.httpClient,
	})
	if err != nil {
		return nil, err
	}
	return NewTranslator(generator, cfg, f.limiterFor(cfg.MinInterval)), nil
}

// limiterFor returns the limiter shared by every translator using interval,
// or nil when calls are not spaced.
func (f *DefaultTranslatorFactory) limiterFor(interval time.Duration) RateLimiter {
	if interval <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[interval]
	if !ok {
		limiter = NewRateLimiter(interval)
		f.limiters[interval] = limiter
	}
	return limiter
}
