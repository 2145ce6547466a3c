package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

const anthropicMaxTokens = 4096

// AnthropicProvider talks to the Messages API.
type AnthropicProvider struct {
	client  *resty.Client
	apiKey  string
	version string
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, baseURL, version string, log *logger.Logger) *AnthropicProvider {
	return &AnthropicProvider{
		client:  newHTTPClient(string(model.ProviderAnthropic), baseURL, log),
		apiKey:  apiKey,
		version: version,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() model.Provider {
	return model.ProviderAnthropic
}

// Configured reports whether an API key is set.
func (p *AnthropicProvider) Configured() bool {
	return p.apiKey != ""
}

// FallbackError is used when a failure has no message.
func (p *AnthropicProvider) FallbackError() string {
	return "Failed to get response from Claude"
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []ChatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage json.RawMessage `json:"usage"`
}

// Send issues a Messages request.
func (p *AnthropicProvider) Send(ctx context.Context, modelID string, messages []model.Message) (*Reply, error) {
	body, err := postJSON(
		p.client.R().
			SetContext(ctx).
			SetHeader("x-api-key", p.apiKey).
			SetHeader("anthropic-version", p.version),
		"/messages",
		buildAnthropicRequest(modelID, messages),
	)
	if err != nil {
		return nil, err
	}
	return parseAnthropicResponse(body)
}

// buildAnthropicRequest lifts the first system message into the top-level
// system field and maps every other turn to user or assistant.
func buildAnthropicRequest(modelID string, messages []model.Message) anthropicRequest {
	req := anthropicRequest{
		Model:     modelID,
		MaxTokens: anthropicMaxTokens,
		Messages:  make([]ChatMessage, 0, len(messages)),
	}

	systemSeen := false
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if !systemSeen {
				req.System = msg.Content
				systemSeen = true
			}
			continue
		}

		role := string(model.RoleUser)
		if msg.Role == model.RoleAssistant {
			role = string(model.RoleAssistant)
		}
		req.Messages = append(req.Messages, ChatMessage{Role: role, Content: msg.Content})
	}

	return req
}

func parseAnthropicResponse(body []byte) (*Reply, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed Anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("malformed Anthropic response: no content blocks")
	}

	return &Reply{
		Content: resp.Content[0].Text,
		Usage:   nullableRaw(resp.Usage),
	}, nil
}

// nullableRaw drops an absent or JSON-null usage block.
func nullableRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
