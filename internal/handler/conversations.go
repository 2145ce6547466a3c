// Package handler provides HTTP handlers for the loopback bridge.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/service"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

// ConversationHandler handles model selection and conversation endpoints.
type ConversationHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(chat *service.ChatService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		chat:   chat,
		logger: log,
	}
}

// Models handles GET /api/models
func (h *ConversationHandler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Models())
}

// Get handles GET /api/conversation
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, conversationView(h.chat.Store()))
}

// SwitchModel handles PUT /api/conversation/model
func (h *ConversationHandler) SwitchModel(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchModelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "modelId is required")
		return
	}

	h.chat.Store().SwitchModel(req.ModelID)
	h.logger.Info("model switched", zap.String("model", req.ModelID))

	writeJSON(w, http.StatusOK, conversationView(h.chat.Store()))
}

// Clear handles DELETE /api/conversation
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Store().ClearCurrentConversation(r.Context()); err != nil {
		h.logger.Error("failed to clear conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}
	writeJSON(w, http.StatusOK, conversationView(h.chat.Store()))
}

// ClearAll handles DELETE /api/conversations
func (h *ConversationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Store().ClearAllConversations(r.Context()); err != nil {
		h.logger.Error("failed to clear conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear conversations")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func conversationView(store *service.ConversationStore) model.ConversationResponse {
	return model.ConversationResponse{
		Model:     store.CurrentModel(),
		Messages:  store.CurrentMessages(),
		IsLoading: store.IsLoading(),
	}
}
