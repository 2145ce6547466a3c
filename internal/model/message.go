package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Timestamp is optional; a nil timestamp renders as "now".
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// IsError marks a message synthesized from a failed request.
	IsError bool `json:"isError,omitempty"`

	// Usage is the provider's accounting block, kept verbatim.
	Usage json.RawMessage `json:"usage,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	now := time.Now().UTC()
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: &now,
	}
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// UpdateMessageRequest replaces the content of the last message.
type UpdateMessageRequest struct {
	Content string `json:"content"`
}

// SwitchModelRequest selects the active conversation.
type SwitchModelRequest struct {
	ModelID string `json:"modelId"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
}
