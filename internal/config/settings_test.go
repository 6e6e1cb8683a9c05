package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

func ptr[T any](v T) *T { return &v }

func validSettings() Settings {
	s := DefaultSettings()
	s.APIKey = "test-key-1234"
	return s
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"valid", func(*Settings) {}, ""},
		{"missing key", func(s *Settings) { s.APIKey = " " }, "api_key"},
		{"missing model", func(s *Settings) { s.Model = "" }, "model"},
		{"bad provider", func(s *Settings) { s.Provider = "bard" }, "provider"},
		{"zero batch", func(s *Settings) { s.BatchSize = 0 }, "batch_size"},
		{"zero concurrency", func(s *Settings) { s.Concurrency = 0 }, "concurrency"},
		{"temperature range", func(s *Settings) { s.Temperature = 3 }, "temperature"},
		{"top p range", func(s *Settings) { s.TopP = 1.5 }, "top_p"},
		{"bad language code", func(s *Settings) { s.LanguageCode = "not a tag" }, "language_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *apperrors.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want ConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestSettings_Apply(t *testing.T) {
	t.Parallel()
	base := validSettings()
	got := base.Apply(SettingsPatch{
		BatchSize:   ptr(10),
		Temperature: ptr(0.7),
		APIKey:      ptr(""),
		Model:       ptr("gemini-2.5-pro"),
	})

	if got.BatchSize != 10 || got.Temperature != 0.7 || got.Model != "gemini-2.5-pro" {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.APIKey != base.APIKey {
		t.Errorf("empty key in patch must keep the stored key, got %q", got.APIKey)
	}
	if base.BatchSize != 50 {
		t.Error("Apply must not modify the receiver")
	}
}

func TestSettings_Redacted(t *testing.T) {
	t.Parallel()
	s := validSettings()
	if got := s.Redacted().APIKey; got != "*********1234" {
		t.Errorf("Redacted().APIKey = %q", got)
	}
	s.APIKey = "abc"
	if got := s.Redacted().APIKey; got != "****" {
		t.Errorf("short key = %q", got)
	}
}

func TestSettings_RequestConfig(t *testing.T) {
	t.Parallel()
	s := validSettings()
	s.LanguageCode = "de"
	s.Language = "German"
	s.Thinking = false
	s.ThinkingBudget = 512
	s.BaseDelay = "not-a-duration"

	cfg, err := s.RequestConfig()
	if err != nil {
		t.Fatalf("RequestConfig() error: %v", err)
	}
	if cfg.TargetLanguage != "German" || cfg.LanguageCode != "de" {
		t.Errorf("language = %q/%q", cfg.TargetLanguage, cfg.LanguageCode)
	}
	if cfg.Generation.ThinkingBudget != 0 {
		t.Errorf("thinking disabled must zero the budget, got %d", cfg.Generation.ThinkingBudget)
	}
	if cfg.Retry.BaseDelay != 5*time.Second {
		t.Errorf("invalid base delay should fall back to 5s, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.MaxDelay != time.Minute {
		t.Errorf("retry = %+v", cfg.Retry)
	}

	s.Language = ""
	s.LanguageCode = "fr"
	if cfg, _ := s.RequestConfig(); cfg.TargetLanguage != "French" {
		t.Errorf("name derived from code = %q, want French", cfg.TargetLanguage)
	}

	s.APIKey = ""
	if _, err := s.RequestConfig(); !errors.Is(err, &apperrors.ConfigurationError{}) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestSettingsStore_PersistsUpdates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	store, err := NewSettingsStore(path, validSettings())
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}
	if _, err := store.Update(SettingsPatch{LanguageCode: ptr("fr"), Language: ptr("French")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	reopened, err := NewSettingsStore(path, DefaultSettings())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Get()
	if got.LanguageCode != "fr" || got.Language != "French" {
		t.Errorf("reopened settings = %+v", got)
	}
	if got.APIKey != "test-key-1234" {
		t.Errorf("api key not persisted, got %q", got.APIKey)
	}
}

func TestSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	t.Parallel()
	store, err := NewSettingsStore("", validSettings())
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}
	if _, err := store.Update(SettingsPatch{BatchSize: ptr(0)}); err == nil {
		t.Fatal("expected error for batch_size 0")
	}
	if _, err := store.Update(SettingsPatch{LanguageCode: ptr("not a tag")}); err == nil {
		t.Fatal("expected error for an invalid language code")
	}
	if got := store.Get(); got.BatchSize != 50 || got.LanguageCode != "en" {
		t.Error("invalid update must leave settings untouched")
	}
}

func TestSettingsStore_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSettingsStore(path, DefaultSettings()); err == nil {
		t.Fatal("expected decode error")
	}
}
