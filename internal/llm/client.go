// Package llm routes provider-agnostic conversations to the OpenAI,
// Anthropic, Google and Ollama HTTP APIs and normalizes their replies.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/capitalize-ai/modelchat/internal/model"
)

// ChatMessage is the {role, content} pair most wire formats share.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is a provider's successful answer.
type Reply struct {
	Content string
	Usage   json.RawMessage
}

// Provider is one backend API family.
type Provider interface {
	// Name returns the provider this implementation serves.
	Name() model.Provider

	// Configured reports whether the required credential is present.
	Configured() bool

	// Send transforms messages into the provider's wire schema, issues the
	// request and parses the reply.
	Send(ctx context.Context, modelID string, messages []model.Message) (*Reply, error)

	// FallbackError is the message used when a failure carries no text.
	FallbackError() string
}

// ProviderError is a non-2xx reply from a provider API.
type ProviderError struct {
	StatusCode int
	// Message is extracted from the provider's structured error body and may
	// be empty when the body had none.
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// FailureKind classifies a failed result.
type FailureKind string

const (
	KindInvalidModel  FailureKind = "invalid_model"
	KindConfiguration FailureKind = "configuration"
	KindProvider      FailureKind = "provider"
	KindTransport     FailureKind = "transport"
)

// Result is the outcome of a routed request: either a reply or a failure.
// It is always returned as a value; the router never panics or errors.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Usage   json.RawMessage `json:"usage,omitempty"`

	Error string      `json:"error,omitempty"`
	Kind  FailureKind `json:"kind,omitempty"`

	Provider model.Provider `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
	Latency  time.Duration  `json:"latency,omitempty"`
}

// Succeeded builds a success result.
func Succeeded(message string, usage json.RawMessage) Result {
	return Result{Success: true, Message: message, Usage: usage}
}

// Failed builds a failure result.
func Failed(kind FailureKind, message string) Result {
	return Result{Kind: kind, Error: message}
}

// apiErrorMessage extracts a human-readable message from an error body.
// Handles {"error":{"message":"…"}} (OpenAI, Anthropic, Google) and
// {"error":"…"} (Ollama).
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &structured); err == nil {
		return structured.Message
	}

	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return plain
	}
	return ""
}
