package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

// OllamaProvider talks to a local Ollama server's generate endpoint.
type OllamaProvider struct {
	client *resty.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, log *logger.Logger) *OllamaProvider {
	return &OllamaProvider{
		client: newHTTPClient(string(model.ProviderOllama), baseURL, log),
	}
}

// Name returns the provider name.
func (p *OllamaProvider) Name() model.Provider {
	return model.ProviderOllama
}

// Configured is always true; a local server needs no credential.
func (p *OllamaProvider) Configured() bool {
	return true
}

// FallbackError is used when a failure has no message.
func (p *OllamaProvider) FallbackError() string {
	return "Failed to connect to local LLM. Make sure Ollama is running."
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response *string `json:"response"`
}

// Send issues a single non-streaming generate request.
func (p *OllamaProvider) Send(ctx context.Context, modelID string, messages []model.Message) (*Reply, error) {
	body, err := postJSON(
		p.client.R().SetContext(ctx),
		"/api/generate",
		ollamaGenerateRequest{
			Model:  modelID,
			Prompt: buildOllamaPrompt(messages),
			Stream: false,
		},
	)
	if err != nil {
		return nil, err
	}
	return parseOllamaResponse(body)
}

// buildOllamaPrompt flattens the transcript into "Role: content" lines and
// ends with an "Assistant:" cue.
func buildOllamaPrompt(messages []model.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = roleLabel(msg.Role) + ": " + msg.Content
	}
	return strings.Join(lines, "\n") + "\nAssistant:"
}

// roleLabel labels every non-user turn, system included, as the assistant.
func roleLabel(role model.Role) string {
	if role == model.RoleUser {
		return "User"
	}
	return "Assistant"
}

// parseOllamaResponse returns the raw text; Ollama usage is never reported.
func parseOllamaResponse(body []byte) (*Reply, error) {
	var resp ollamaGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed Ollama response: %w", err)
	}
	if resp.Response == nil {
		return nil, errors.New("malformed Ollama response: missing response field")
	}
	return &Reply{Content: *resp.Response}, nil
}
