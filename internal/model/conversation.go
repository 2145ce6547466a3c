// Package model defines data structures for the chat client.
package model

// Conversations maps a model identifier to its ordered message history.
type Conversations map[string][]Message

// Clone returns a deep copy safe to hand to callers.
func (c Conversations) Clone() Conversations {
	out := make(Conversations, len(c))
	for id, msgs := range c {
		out[id] = CloneMessages(msgs)
	}
	return out
}

// CloneMessages copies a message slice, never returning nil.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// ConversationResponse is the view of the active conversation.
type ConversationResponse struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"isLoading"`
}

// ModelStatus describes a model for listings.
type ModelStatus struct {
	Descriptor
	Configured   bool `json:"configured"`
	MessageCount int  `json:"messageCount"`
	Current      bool `json:"current"`
}

// ListModelsResponse is the response for listing models.
type ListModelsResponse struct {
	Models       []ModelStatus `json:"models"`
	CurrentModel string        `json:"currentModel"`
}
