package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
	"github.com/capitalize-ai/modelchat/pkg/metrics"
	"github.com/capitalize-ai/modelchat/pkg/tracing"
)

// Config holds provider credentials and endpoints.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicVersion string

	GoogleAPIKey  string
	GoogleBaseURL string

	OllamaBaseURL string
}

// Router dispatches a conversation to the provider serving the selected model.
type Router struct {
	providers map[model.Provider]Provider
	logger    *logger.Logger
	tracer    trace.Tracer
}

// NewRouter creates a router over the given providers, keyed by Name().
func NewRouter(log *logger.Logger, providers ...Provider) *Router {
	r := &Router{
		providers: make(map[model.Provider]Provider, len(providers)),
		logger:    log,
		tracer:    tracing.Tracer("github.com/capitalize-ai/modelchat/internal/llm"),
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// NewDefaultRouter wires all four providers from cfg.
func NewDefaultRouter(cfg Config, log *logger.Logger) *Router {
	return NewRouter(log,
		NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicVersion, log),
		NewGoogleProvider(cfg.GoogleAPIKey, cfg.GoogleBaseURL, log),
		NewOllamaProvider(cfg.OllamaBaseURL, log),
	)
}

// IsModelConfigured reports whether the provider for modelID has what it
// needs to be called. Unknown ids are never configured.
func (r *Router) IsModelConfigured(modelID string) bool {
	desc, ok := model.LookupModel(modelID)
	if !ok {
		return false
	}
	p, ok := r.providers[desc.Provider]
	if !ok {
		return false
	}
	return p.Configured()
}

// SendMessage sends the conversation to modelID's provider. It never returns
// an error; every failure is folded into the Result.
func (r *Router) SendMessage(ctx context.Context, messages []model.Message, modelID string) (result Result) {
	desc, ok := model.LookupModel(modelID)
	if !ok {
		r.logger.Warn("invalid model selected", zap.String("model", modelID))
		metrics.RecordLLMFailure("unknown", string(KindInvalidModel))
		res := Failed(KindInvalidModel, "Invalid model selected")
		res.Model = modelID
		return res
	}

	p, ok := r.providers[desc.Provider]
	if !ok {
		metrics.RecordLLMFailure(string(desc.Provider), string(KindConfiguration))
		res := Failed(KindConfiguration, "Unknown provider")
		res.Provider = desc.Provider
		res.Model = modelID
		return res
	}

	ctx, span := r.tracer.Start(ctx, "llm.SendMessage", trace.WithAttributes(
		attribute.String("llm.provider", string(desc.Provider)),
		attribute.String("llm.model", modelID),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("provider panicked",
				zap.String("provider", string(desc.Provider)),
				zap.String("model", modelID),
				zap.Any("panic", rec),
			)
			result = Failed(KindTransport, p.FallbackError())
		}

		result.Provider = desc.Provider
		result.Model = modelID
		result.Latency = time.Since(start)
		r.record(span, result)
	}()

	reply, err := p.Send(ctx, modelID, messages)
	if err != nil {
		return r.normalize(p, err)
	}
	return Succeeded(reply.Content, reply.Usage)
}

// normalize picks the most specific text available for err: the provider's
// structured message, then the error text, then the provider's fallback.
// A ProviderError without a message still carries its status text.
func (r *Router) normalize(p Provider, err error) Result {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return Failed(KindProvider, perr.Error())
	}

	if msg := err.Error(); msg != "" {
		return Failed(KindTransport, msg)
	}
	return Failed(KindTransport, p.FallbackError())
}

func (r *Router) record(span trace.Span, result Result) {
	status := "success"
	if !result.Success {
		status = "error"
		metrics.RecordLLMFailure(string(result.Provider), string(result.Kind))
		span.SetStatus(codes.Error, result.Error)
		span.SetAttributes(attribute.String("llm.failure_kind", string(result.Kind)))

		r.logger.Warn("provider request failed",
			zap.String("provider", string(result.Provider)),
			zap.String("model", result.Model),
			zap.String("kind", string(result.Kind)),
			zap.String("error", result.Error),
			zap.Duration("latency", result.Latency),
		)
	}
	metrics.RecordLLMRequest(string(result.Provider), result.Model, status, result.Latency.Seconds())
}

// String makes a Result readable in logs and test failures.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("success(%s/%s): %q", r.Provider, r.Model, r.Message)
	}
	return fmt.Sprintf("failure(%s/%s, %s): %s", r.Provider, r.Model, r.Kind, r.Error)
}
