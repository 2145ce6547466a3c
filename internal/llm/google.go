package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"google.golang.org/genai"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

const (
	googleTemperature     = 0.7
	googleMaxOutputTokens = 2048
)

// GoogleProvider talks to the Gemini generateContent API.
type GoogleProvider struct {
	client *resty.Client
	apiKey string
}

// NewGoogleProvider creates a new Gemini provider.
func NewGoogleProvider(apiKey, baseURL string, log *logger.Logger) *GoogleProvider {
	return &GoogleProvider{
		client: newHTTPClient(string(model.ProviderGoogle), baseURL, log),
		apiKey: apiKey,
	}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() model.Provider {
	return model.ProviderGoogle
}

// Configured reports whether an API key is set.
func (p *GoogleProvider) Configured() bool {
	return p.apiKey != ""
}

// FallbackError is used when a failure has no message.
func (p *GoogleProvider) FallbackError() string {
	return "Failed to get response from Gemini"
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// googlePart mirrors genai.Part for requests. genai.Part tags text
// omitempty, which would send an empty message as an empty part.
type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents         []googleContent        `json:"contents"`
	GenerationConfig googleGenerationConfig `json:"generationConfig"`
}

type googleResponse struct {
	Candidates    []*genai.Candidate `json:"candidates"`
	UsageMetadata json.RawMessage    `json:"usageMetadata"`
}

// Send issues a generateContent request authenticated by query key.
func (p *GoogleProvider) Send(ctx context.Context, modelID string, messages []model.Message) (*Reply, error) {
	body, err := postJSON(
		p.client.R().
			SetContext(ctx).
			SetPathParam("model", modelID).
			SetQueryParam("key", p.apiKey),
		"/models/{model}:generateContent",
		buildGoogleRequest(messages),
	)
	if err != nil {
		return nil, err
	}
	return parseGoogleResponse(body)
}

// buildGoogleRequest drops system turns; Gemini has no system field here.
func buildGoogleRequest(messages []model.Message) googleRequest {
	contents := make([]googleContent, 0, len(messages))
	for _, msg := range messages {
		role := string(genai.RoleUser)
		switch msg.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			role = string(genai.RoleModel)
		}
		contents = append(contents, googleContent{
			Role:  role,
			Parts: []googlePart{{Text: msg.Content}},
		})
	}

	return googleRequest{
		Contents: contents,
		GenerationConfig: googleGenerationConfig{
			Temperature:     googleTemperature,
			MaxOutputTokens: googleMaxOutputTokens,
		},
	}
}

func parseGoogleResponse(body []byte) (*Reply, error) {
	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed Gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, errors.New("malformed Gemini response: no candidates")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return nil, errors.New("malformed Gemini response: candidate has no parts")
	}

	return &Reply{
		Content: content.Parts[0].Text,
		Usage:   nullableRaw(resp.UsageMetadata),
	}, nil
}
