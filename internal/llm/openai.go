package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/modelchat/internal/model"
)

const (
	openAITemperature = 0.7
	openAIMaxTokens   = 2000
)

// OpenAIProvider talks to the chat-completions API.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
}

// NewOpenAIProvider creates a new OpenAI provider. An empty key is allowed;
// requests then fail at the API and are normalized by the router.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() model.Provider {
	return model.ProviderOpenAI
}

// Configured reports whether an API key is set.
func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != ""
}

// FallbackError is used when a failure has no message.
func (p *OpenAIProvider) FallbackError() string {
	return "Failed to get response from OpenAI"
}

// Send issues a chat completion request.
func (p *OpenAIProvider) Send(ctx context.Context, modelID string, messages []model.Message) (*Reply, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildOpenAIRequest(modelID, messages))
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, err
	}
	return parseOpenAIResponse(resp)
}

// buildOpenAIRequest keeps only role and content of each message.
func buildOpenAIRequest(modelID string, messages []model.Message) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	return openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    out,
		Temperature: openAITemperature,
		MaxTokens:   openAIMaxTokens,
	}
}

func parseOpenAIResponse(resp openai.ChatCompletionResponse) (*Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("malformed OpenAI response: no choices")
	}

	usage, err := json.Marshal(resp.Usage)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage: %w", err)
	}

	return &Reply{
		Content: resp.Choices[0].Message.Content,
		Usage:   usage,
	}, nil
}
