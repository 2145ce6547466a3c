package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/service"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

// MessageHandler handles message endpoints of the active conversation.
type MessageHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(chat *service.ChatService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		chat:   chat,
		logger: log,
	}
}

// Send handles POST /api/conversation/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.chat.Send(r.Context(), req.Content)
	h.writeExchange(w, r, res, err)
}

// Regenerate handles POST /api/conversation/regenerate
func (h *MessageHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	res, err := h.chat.Regenerate(r.Context())
	h.writeExchange(w, r, res, err)
}

// UpdateLast handles PATCH /api/conversation/messages/last
func (h *MessageHandler) UpdateLast(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := service.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.chat.Store().UpdateLastMessage(r.Context(), req.Content); err != nil {
		h.logger.Error("failed to update last message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	writeJSON(w, http.StatusOK, conversationView(h.chat.Store()))
}

// DeleteLast handles DELETE /api/conversation/messages/last
func (h *MessageHandler) DeleteLast(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Store().DeleteLastResponse(r.Context()); err != nil {
		h.logger.Error("failed to delete last response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	writeJSON(w, http.StatusOK, conversationView(h.chat.Store()))
}

// writeExchange maps a chat exchange to a response. A provider failure is
// still a created message; only refusals are client errors.
func (h *MessageHandler) writeExchange(w http.ResponseWriter, r *http.Request, res *service.SendResult, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidContent):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrModelNotConfigured):
		writeError(w, http.StatusPreconditionFailed, err.Error())
		return
	case errors.Is(err, service.ErrRequestInFlight):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, service.ErrNothingToRegenerate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil && res == nil:
		h.logger.Error("failed to send message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	case err != nil:
		h.logger.Error("exchange completed but was not persisted",
			zap.String("correlation_id", logger.CorrelationID(r.Context())),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{
		Message: &res.Message,
		Success: res.Result.Success,
		Error:   res.Result.Error,
	})
}
