package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// GenerateRequest is one prompt sent to a generative model.
type GenerateRequest struct {
	Model  string
	System string
	Prompt string
	Params models.GenerationParams

	// Schema, when set, asks the model for JSON matching this JSON Schema.
	Schema     any
	SchemaName string
}

// Generator produces a text completion for a prompt.
//
// Errors are classified for the retry layer: *apperrors.RateLimitError for
// quota responses, *apperrors.SafetyBlockError when the provider refuses the
// content and *apperrors.FatalRemoteError for requests no retry can fix.
// Anything else is transient.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorOptions configures NewGenerator.
type GeneratorOptions struct {
	Provider   string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGenerator returns the Generator for the configured provider.
func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	if opts.APIKey == "" {
		return nil, apperrors.NewConfigurationError("api_key", "is required")
	}
	switch opts.Provider {
	case models.ProviderGemini, "":
		return NewGeminiGenerator(ctx, opts.APIKey, opts.BaseURL, opts.HTTPClient)
	case models.ProviderOpenAI:
		return NewOpenAIGenerator(opts.APIKey, opts.BaseURL, opts.HTTPClient), nil
	default:
		return nil, apperrors.NewConfigurationError("provider", fmt.Sprintf("unknown provider %q", opts.Provider))
	}
}

var quotaMarkers = []string{"quota", "rate limit", "rate_limit", "resource_exhausted", "resource exhausted"}

func isQuotaMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyStatus maps an HTTP status from a provider onto the error kinds of apperrors.
// Quota and rate-limit messages are rate limits whatever the status.
func classifyStatus(provider string, status int, message string, cause error) error {
	switch {
	case status == http.StatusTooManyRequests || isQuotaMessage(message):
		return &apperrors.RateLimitError{Provider: provider, Message: message}
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%s request timed out: %w", provider, cause)
	case status >= 400 && status < 500:
		return &apperrors.FatalRemoteError{Provider: provider, StatusCode: status, Message: message}
	default:
		return fmt.Errorf("%s request failed with status %d: %w", provider, status, cause)
	}
}
