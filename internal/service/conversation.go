// Package service holds the conversation store and the chat workflow built
// on top of it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/storage"
	"github.com/capitalize-ai/modelchat/pkg/logger"
	"github.com/capitalize-ai/modelchat/pkg/metrics"
)

// DefaultStoreKey is the single key the conversation mapping lives under.
const DefaultStoreKey = "ai-chat-conversations"

// ConversationStore keeps one ordered message history per model and writes
// the whole mapping through to storage after every mutation.
type ConversationStore struct {
	storage storage.Storage
	key     string
	logger  *logger.Logger

	mu            sync.RWMutex
	conversations model.Conversations
	currentModel  string
	loading       map[string]bool
}

// OpenConversationStore loads the persisted mapping from key. A missing or
// malformed value starts an empty store; only backend I/O errors fail.
func OpenConversationStore(ctx context.Context, backend storage.Storage, key, currentModel string, log *logger.Logger) (*ConversationStore, error) {
	if key == "" {
		key = DefaultStoreKey
	}
	if currentModel == "" {
		currentModel = model.DefaultModel
	}

	s := &ConversationStore{
		storage:       backend,
		key:           key,
		logger:        log,
		conversations: make(model.Conversations),
		currentModel:  currentModel,
		loading:       make(map[string]bool),
	}

	raw, err := backend.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	convs, err := decodeConversations(raw)
	if err != nil {
		log.Warn("discarding unreadable conversations",
			zap.String("key", key),
			zap.Error(err),
		)
		return s, nil
	}
	s.conversations = convs

	log.Info("conversations loaded",
		zap.String("key", key),
		zap.Int("models", len(convs)),
	)

	return s, nil
}

func decodeConversations(raw []byte) (model.Conversations, error) {
	var convs model.Conversations
	if err := json.Unmarshal(raw, &convs); err != nil {
		return nil, err
	}
	if convs == nil {
		return nil, errors.New("conversations value is null")
	}
	for id, msgs := range convs {
		for i, msg := range msgs {
			if !msg.Role.Valid() {
				return nil, fmt.Errorf("conversation %q message %d has role %q", id, i, msg.Role)
			}
		}
	}
	return convs, nil
}

// CurrentModel returns the selected model id.
func (s *ConversationStore) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

// CurrentMessages returns a copy of the selected model's conversation.
func (s *ConversationStore) CurrentMessages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.conversations[s.currentModel])
}

// Messages returns a copy of modelID's conversation.
func (s *ConversationStore) Messages(modelID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.conversations[modelID])
}

// MessageCount returns the length of modelID's conversation.
func (s *ConversationStore) MessageCount(modelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[modelID])
}

// Conversations returns a deep copy of every conversation.
func (s *ConversationStore) Conversations() model.Conversations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations.Clone()
}

// AddMessage appends msg to the current conversation.
func (s *ConversationStore) AddMessage(ctx context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ctx, s.currentModel, msg)
}

// AddMessageTo appends msg to modelID's conversation regardless of the
// current selection.
func (s *ConversationStore) AddMessageTo(ctx context.Context, modelID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ctx, modelID, msg)
}

func (s *ConversationStore) appendLocked(ctx context.Context, modelID string, msg model.Message) error {
	s.conversations[modelID] = append(s.conversations[modelID], msg)
	metrics.MessagesTotal.WithLabelValues(modelLabel(modelID), string(msg.Role)).Inc()
	return s.persistLocked(ctx, "add")
}

// modelLabel keeps metric cardinality bounded to the catalog.
func modelLabel(modelID string) string {
	if _, ok := model.LookupModel(modelID); ok {
		return modelID
	}
	return "unknown"
}

// UpdateLastMessage replaces the content of the current conversation's final
// message. Nothing happens when the conversation is empty.
func (s *ConversationStore) UpdateLastMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[s.currentModel]
	if len(msgs) == 0 {
		return nil
	}
	msgs[len(msgs)-1].Content = content
	return s.persistLocked(ctx, "update_last")
}

// ClearCurrentConversation empties the current conversation only.
func (s *ConversationStore) ClearCurrentConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[s.currentModel] = []model.Message{}
	return s.persistLocked(ctx, "clear")
}

// ClearAllConversations empties every conversation and removes the
// persisted key.
func (s *ConversationStore) ClearAllConversations(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(model.Conversations)

	err := s.storage.Delete(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	metrics.RecordStoreWrite("clear_all", err)
	if err != nil {
		return fmt.Errorf("failed to delete conversations: %w", err)
	}

	s.logger.Info("all conversations cleared", zap.String("key", s.key))
	return nil
}

// SwitchModel selects modelID. The id is not validated; an unknown id
// simply has an empty conversation.
func (s *ConversationStore) SwitchModel(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentModel = modelID
}

// DeleteLastResponse removes the final two messages of the current
// conversation. Fewer than two is a no-op.
func (s *ConversationStore) DeleteLastResponse(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLastLocked(ctx, s.currentModel)
}

// DeleteLastResponseFrom is DeleteLastResponse for a named conversation.
func (s *ConversationStore) DeleteLastResponseFrom(ctx context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLastLocked(ctx, modelID)
}

func (s *ConversationStore) deleteLastLocked(ctx context.Context, modelID string) error {
	msgs := s.conversations[modelID]
	if len(msgs) < 2 {
		return nil
	}
	s.conversations[modelID] = msgs[:len(msgs)-2]
	return s.persistLocked(ctx, "delete_last")
}

// SetLoading marks a request for modelID as in flight or finished.
func (s *ConversationStore) SetLoading(modelID string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loading {
		s.loading[modelID] = true
		return
	}
	delete(s.loading, modelID)
}

// IsLoading reports whether a request for the current model is in flight.
func (s *ConversationStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[s.currentModel]
}

// TryStartLoading marks modelID as loading and reports false if it already was.
func (s *ConversationStore) TryStartLoading(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading[modelID] {
		return false
	}
	s.loading[modelID] = true
	return true
}

// Ping checks the storage backend.
func (s *ConversationStore) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *ConversationStore) persistLocked(ctx context.Context, op string) error {
	raw, err := json.Marshal(s.conversations)
	if err == nil {
		err = s.storage.Set(ctx, s.key, raw)
	}
	metrics.RecordStoreWrite(op, err)
	if err != nil {
		s.logger.Error("failed to persist conversations",
			zap.String("op", op),
			zap.String("key", s.key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to persist conversations: %w", err)
	}
	return nil
}
