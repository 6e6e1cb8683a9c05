package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/parser"
)

// Settings are the user-editable translation defaults. They are read from the
// "translation" section of the config file, overlaid by the persisted settings file,
// and updated at runtime through the API.
type Settings struct {
	Provider          string  `mapstructure:"provider" json:"provider"`
	APIKey            string  `mapstructure:"api_key" json:"api_key"`
	Model             string  `mapstructure:"model" json:"model"`
	Language          string  `mapstructure:"language" json:"language"`
	LanguageCode      string  `mapstructure:"language_code" json:"language_code"`
	BatchSize         int     `mapstructure:"batch_size" json:"batch_size"`
	Concurrency       int     `mapstructure:"concurrency" json:"concurrency"`
	Temperature       float64 `mapstructure:"temperature" json:"temperature"`
	TopP              float64 `mapstructure:"top_p" json:"top_p"`
	TopK              int     `mapstructure:"top_k" json:"top_k"`
	MaxOutputTokens   int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	SafetyThreshold   string  `mapstructure:"safety_threshold" json:"safety_threshold"`
	Thinking          bool    `mapstructure:"thinking" json:"thinking"`
	ThinkingBudget    int     `mapstructure:"thinking_budget" json:"thinking_budget"`
	MaxRetries        int     `mapstructure:"max_retries" json:"max_retries"`
	BaseDelay         string  `mapstructure:"base_delay" json:"base_delay"`
	MaxDelay          string  `mapstructure:"max_delay" json:"max_delay"`
	Jitter            string  `mapstructure:"jitter" json:"jitter"`
	MinInterval       string  `mapstructure:"min_interval" json:"min_interval"`
	AbortOnExhaustion bool    `mapstructure:"abort_on_exhaustion" json:"abort_on_exhaustion"`
	Description       string  `mapstructure:"description" json:"description"`
	AutoFetchTMDB     bool    `mapstructure:"auto_fetch_tmdb" json:"auto_fetch_tmdb"`
}

// DefaultSettings returns the built-in translation defaults.
func DefaultSettings() Settings {
	return Settings{
		Provider:        models.ProviderGemini,
		Model:           "gemini-2.5-flash",
		Language:        "English",
		LanguageCode:    "en",
		BatchSize:       50,
		Concurrency:     4,
		Temperature:     0.2,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 8192,
		SafetyThreshold: "BLOCK_NONE",
		ThinkingBudget:  0,
		MaxRetries:      3,
		BaseDelay:       "5s",
		MaxDelay:        "60s",
		Jitter:          "1s",
		MinInterval:     "1s",
		AutoFetchTMDB:   true,
	}
}

// SettingsPatch is a partial update. Nil fields are left unchanged.
type SettingsPatch struct {
	Provider          *string  `json:"provider,omitempty"`
	APIKey            *string  `json:"api_key,omitempty"`
	Model             *string  `json:"model,omitempty"`
	Language          *string  `json:"language,omitempty"`
	LanguageCode      *string  `json:"language_code,omitempty"`
	BatchSize         *int     `json:"batch_size,omitempty"`
	Concurrency       *int     `json:"concurrency,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MaxOutputTokens   *int     `json:"max_output_tokens,omitempty"`
	SafetyThreshold   *string  `json:"safety_threshold,omitempty"`
	Thinking          *bool    `json:"thinking,omitempty"`
	ThinkingBudget    *int     `json:"thinking_budget,omitempty"`
	MaxRetries        *int     `json:"max_retries,omitempty"`
	MinInterval       *string  `json:"min_interval,omitempty"`
	AbortOnExhaustion *bool    `json:"abort_on_exhaustion,omitempty"`
	Description       *string  `json:"description,omitempty"`
	AutoFetchTMDB     *bool    `json:"auto_fetch_tmdb,omitempty"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Apply returns a copy of s with the non-nil fields of p applied.
func (s Settings) Apply(p SettingsPatch) Settings {
	set(&s.Provider, p.Provider)
	set(&s.Model, p.Model)
	set(&s.Language, p.Language)
	set(&s.LanguageCode, p.LanguageCode)
	set(&s.BatchSize, p.BatchSize)
	set(&s.Concurrency, p.Concurrency)
	set(&s.Temperature, p.Temperature)
	set(&s.TopP, p.TopP)
	set(&s.TopK, p.TopK)
	set(&s.MaxOutputTokens, p.MaxOutputTokens)
	set(&s.SafetyThreshold, p.SafetyThreshold)
	set(&s.Thinking, p.Thinking)
	set(&s.ThinkingBudget, p.ThinkingBudget)
	set(&s.MaxRetries, p.MaxRetries)
	set(&s.MinInterval, p.MinInterval)
	set(&s.AbortOnExhaustion, p.AbortOnExhaustion)
	set(&s.Description, p.Description)
	set(&s.AutoFetchTMDB, p.AutoFetchTMDB)
	// An empty key in a patch means "keep the stored one".
	if p.APIKey != nil && strings.TrimSpace(*p.APIKey) != "" {
		s.APIKey = strings.TrimSpace(*p.APIKey)
	}
	return s
}

// Validate checks that the settings can drive a translation.
func (s Settings) Validate() error {
	switch {
	case s.Provider != models.ProviderGemini && s.Provider != models.ProviderOpenAI:
		return apperrors.NewConfigurationError("provider", fmt.Sprintf("unsupported provider %q", s.Provider))
	case strings.TrimSpace(s.APIKey) == "":
		return apperrors.NewConfigurationError("api_key", "an API key is required")
	case strings.TrimSpace(s.Model) == "":
		return apperrors.NewConfigurationError("model", "a model is required")
	case strings.TrimSpace(s.LanguageCode) == "":
		return apperrors.NewConfigurationError("language_code", "a target language code is required")
	case !parser.ValidLanguageCode(s.LanguageCode):
		return apperrors.NewConfigurationError("language_code", fmt.Sprintf("%q is not a BCP 47 language code", s.LanguageCode))
	case s.BatchSize < 1:
		return apperrors.NewConfigurationError("batch_size", "must be at least 1")
	case s.Concurrency < 1:
		return apperrors.NewConfigurationError("concurrency", "must be at least 1")
	case s.MaxRetries < 1:
		return apperrors.NewConfigurationError("max_retries", "must be at least 1")
	case s.Temperature < 0 || s.Temperature > 2:
		return apperrors.NewConfigurationError("temperature", "must be between 0 and 2")
	case s.TopP < 0 || s.TopP > 1:
		return apperrors.NewConfigurationError("top_p", "must be between 0 and 1")
	}
	return nil
}

// Redacted returns a copy safe to expose over the API.
func (s Settings) Redacted() Settings {
	if n := len(s.APIKey); n > 4 {
		s.APIKey = strings.Repeat("*", n-4) + s.APIKey[n-4:]
	} else if n > 0 {
		s.APIKey = "****"
	}
	return s
}

// RequestConfig validates the settings and freezes them into a per-request config.
func (s Settings) RequestConfig() (models.TranslationRequestConfig, error) {
	if err := s.Validate(); err != nil {
		return models.TranslationRequestConfig{}, err
	}
	language := s.Language
	if language == "" {
		language = parser.LanguageName(s.LanguageCode)
	}
	budget := 0
	if s.Thinking {
		budget = s.ThinkingBudget
	}
	return models.TranslationRequestConfig{
		Provider:       s.Provider,
		APIKey:         strings.TrimSpace(s.APIKey),
		Model:          s.Model,
		TargetLanguage: language,
		LanguageCode:   s.LanguageCode,
		Description:    s.Description,
		Generation: models.GenerationParams{
			Temperature:     s.Temperature,
			TopP:            s.TopP,
			TopK:            s.TopK,
			MaxOutputTokens: s.MaxOutputTokens,
			SafetyThreshold: s.SafetyThreshold,
			ThinkingBudget:  budget,
		},
		Retry: models.RetryPolicy{
			MaxAttempts: s.MaxRetries,
			BaseDelay:   ParseDuration("translation.base_delay", s.BaseDelay, 5*time.Second),
			MaxDelay:    ParseDuration("translation.max_delay", s.MaxDelay, 60*time.Second),
			Jitter:      ParseDuration("translation.jitter", s.Jitter, time.Second),
		},
		BatchSize:         s.BatchSize,
		Concurrency:       s.Concurrency,
		MinInterval:       s.MinIntervalDuration(),
		AbortOnExhaustion: s.AbortOnExhaustion,
	}, nil
}

// MinIntervalDuration returns the global minimum spacing between remote calls.
func (s Settings) MinIntervalDuration() time.Duration {
	return ParseDuration("translation.min_interval", s.MinInterval, time.Second)
}

// SettingsStore holds the current Settings and persists updates to a JSON file.
type SettingsStore struct {
	mu      sync.RWMutex
	path    string
	current Settings
}

// NewSettingsStore starts from base and overlays the settings file at path when it exists.
// An empty path keeps settings in memory only.
func NewSettingsStore(path string, base Settings) (*SettingsStore, error) {
	store := &SettingsStore{path: path, current: base}
	if path == "" {
		return store, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	if err := json.Unmarshal(data, &store.current); err != nil {
		return nil, fmt.Errorf("decode settings file %s: %w", path, err)
	}
	return store, nil
}

// Get returns a snapshot of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies patch, validates the result and persists it. The stored
// settings are left untouched when validation or persistence fails.
func (s *SettingsStore) Update(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Apply(patch)
	if next.BatchSize < 1 || next.Concurrency < 1 || next.MaxRetries < 1 {
		return s.current, apperrors.NewConfigurationError("", "batch_size, concurrency and max_retries must be at least 1")
	}
	if next.LanguageCode != "" && !parser.ValidLanguageCode(next.LanguageCode) {
		return s.current, apperrors.NewConfigurationError("language_code", fmt.Sprintf("%q is not a BCP 47 language code", next.LanguageCode))
	}
	if err := s.persist(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

func (s *SettingsStore) persist(settings Settings) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
