package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

const openAIProvider = "openai"

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client openai.Client
}

// NewOpenAIGenerator creates a chat completions client. An empty baseURL uses api.openai.com.
func NewOpenAIGenerator(apiKey, baseURL string, httpClient *http.Client) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...)}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Params.Temperature),
		TopP:        openai.Float(req.Params.TopP),
	}
	if req.Params.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Params.MaxOutputTokens))
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return "", &apperrors.SafetyBlockError{Provider: openAIProvider, Reason: choice.Message.Refusal}
	}
	if choice.FinishReason == "content_filter" {
		return "", &apperrors.SafetyBlockError{Provider: openAIProvider, Reason: "content_filter"}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", errors.New("openai returned an empty response")
	}
	return choice.Message.Content, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai request failed: %w", err)
	}
	return classifyStatus(openAIProvider, apiErr.StatusCode, apiErr.Message, err)
}
