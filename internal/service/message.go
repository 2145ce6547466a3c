package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/llm"
	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
	"github.com/capitalize-ai/modelchat/pkg/metrics"
)

var (
	// ErrInvalidContent is returned for empty, oversized or non-UTF-8 input.
	ErrInvalidContent = errors.New("invalid message content")
	// ErrRequestInFlight is returned while the model is already answering.
	ErrRequestInFlight = errors.New("a request for this model is already in flight")
	// ErrModelNotConfigured is returned when the model's provider lacks credentials.
	ErrModelNotConfigured = errors.New("model is not configured")
	// ErrNothingToRegenerate is returned when the conversation does not end
	// in a user message followed by a response.
	ErrNothingToRegenerate = errors.New("no response to regenerate")
)

const unexpectedErrorText = "An unexpected error occurred. Please try again."

// Router sends a conversation to the selected model.
type Router interface {
	SendMessage(ctx context.Context, messages []model.Message, modelID string) llm.Result
	IsModelConfigured(modelID string) bool
}

// SendResult is the outcome of one exchange.
type SendResult struct {
	// Message is the assistant message appended to the conversation.
	Message model.Message
	Result  llm.Result
}

// ChatService runs the user-message, provider-call, reply cycle on top of
// the conversation store.
type ChatService struct {
	store  *ConversationStore
	router Router
	logger *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(store *ConversationStore, router Router, log *logger.Logger) *ChatService {
	return &ChatService{
		store:  store,
		router: router,
		logger: log,
	}
}

// Store returns the underlying conversation store.
func (s *ChatService) Store() *ConversationStore {
	return s.store
}

// Send appends a user message to the current conversation, asks the
// current model for a reply and appends it. A provider failure is appended
// as an error message and is not returned as an error.
//
// When persistence fails after the exchange has started, the result is
// still returned together with the error.
func (s *ChatService) Send(ctx context.Context, content string) (*SendResult, error) {
	if err := ValidateMessageContent(content); err != nil {
		return nil, err
	}
	return s.exchange(ctx, content, false)
}

// Regenerate drops the last response and its prompt and sends the prompt
// again.
func (s *ChatService) Regenerate(ctx context.Context) (*SendResult, error) {
	msgs := s.store.CurrentMessages()
	if len(msgs) < 2 || msgs[len(msgs)-2].Role != model.RoleUser {
		return nil, ErrNothingToRegenerate
	}
	return s.exchange(ctx, msgs[len(msgs)-2].Content, true)
}

func (s *ChatService) exchange(ctx context.Context, content string, regenerate bool) (*SendResult, error) {
	modelID := s.store.CurrentModel()
	log := s.logger.WithModel(logger.CorrelationID(ctx), modelID)

	if !s.store.TryStartLoading(modelID) {
		return nil, ErrRequestInFlight
	}
	defer s.store.SetLoading(modelID, false)

	// Unknown ids are left to the router, which reports them as invalid.
	if _, known := model.LookupModel(modelID); known && !s.router.IsModelConfigured(modelID) {
		return nil, ErrModelNotConfigured
	}

	metrics.InFlightRequests.Inc()
	defer metrics.InFlightRequests.Dec()

	var persistErrs []error
	if regenerate {
		if err := s.store.DeleteLastResponseFrom(ctx, modelID); err != nil {
			persistErrs = append(persistErrs, err)
		}
	}

	if err := s.store.AddMessageTo(ctx, modelID, model.NewMessage(model.RoleUser, content)); err != nil {
		persistErrs = append(persistErrs, err)
	}

	history := s.store.Messages(modelID)
	result := s.router.SendMessage(ctx, history, modelID)

	reply := replyFor(result)
	if err := s.store.AddMessageTo(ctx, modelID, reply); err != nil {
		persistErrs = append(persistErrs, err)
	}

	if result.Success {
		log.Info("exchange completed",
			zap.Int("history", len(history)),
			zap.Duration("latency", result.Latency),
			zap.Bool("regenerated", regenerate),
		)
	} else {
		log.Warn("exchange failed",
			zap.String("kind", string(result.Kind)),
			zap.String("error", result.Error),
		)
	}

	return &SendResult{Message: reply, Result: result}, errors.Join(persistErrs...)
}

func replyFor(result llm.Result) model.Message {
	if result.Success {
		msg := model.NewMessage(model.RoleAssistant, result.Message)
		msg.Usage = result.Usage
		return msg
	}

	text := unexpectedErrorText
	if result.Error != "" {
		text = "Error: " + result.Error
	}
	return model.Message{
		Role:    model.RoleAssistant,
		Content: text,
		IsError: true,
	}
}

// Models lists the catalog with configuration state and message counts.
func (s *ChatService) Models() model.ListModelsResponse {
	current := s.store.CurrentModel()
	catalog := model.Catalog()

	out := make([]model.ModelStatus, len(catalog))
	for i, desc := range catalog {
		out[i] = model.ModelStatus{
			Descriptor:   desc,
			Configured:   s.router.IsModelConfigured(desc.ID),
			MessageCount: s.store.MessageCount(desc.ID),
			Current:      desc.ID == current,
		}
	}

	return model.ListModelsResponse{
		Models:       out,
		CurrentModel: current,
	}
}
