package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

const geminiProvider = "gemini"

// safetyCategories are the harm categories whose threshold follows the configured setting.
var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// blockedFinishReasons end a candidate because of content policy.
var blockedFinishReasons = map[genai.FinishReason]struct{}{
	genai.FinishReasonSafety:            {},
	genai.FinishReasonProhibitedContent: {},
	genai.FinishReasonBlocklist:         {},
	genai.FinishReasonSPII:              {},
}

// GeminiGenerator calls the Gemini API through the official Go SDK.
// The SDK's own retries are not relied on; retries happen in the translator.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a Gemini client. An empty baseURL uses the public endpoint.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*GeminiGenerator, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: c}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		geminiConfig(req),
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &apperrors.SafetyBlockError{Provider: geminiProvider, Reason: string(resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	if reason := resp.Candidates[0].FinishReason; reason != "" {
		if _, blocked := blockedFinishReasons[reason]; blocked {
			return "", &apperrors.SafetyBlockError{Provider: geminiProvider, Reason: string(reason)}
		}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}

func geminiConfig(req GenerateRequest) *genai.GenerateContentConfig {
	p := req.Params
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.Temperature)),
		TopP:            genai.Ptr(float32(p.TopP)),
		MaxOutputTokens: int32(p.MaxOutputTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if p.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(p.TopK))
	}
	if p.SafetyThreshold != "" {
		for _, category := range safetyCategories {
			cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
				Category:  category,
				Threshold: genai.HarmBlockThreshold(p.SafetyThreshold),
			})
		}
	}
	switch {
	case p.ThinkingBudget > 0:
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(p.ThinkingBudget))}
	case strings.Contains(req.Model, "flash"):
		// Pro models cannot turn thinking off; flash models default to it.
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(0))}
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Schema
	}
	return cfg
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		return &apperrors.RateLimitError{Provider: geminiProvider, Message: apiErr.Message}
	}
	return classifyStatus(geminiProvider, apiErr.Code, apiErr.Message, err)
}
