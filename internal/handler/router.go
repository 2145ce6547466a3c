package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/modelchat/internal/middleware"
	"github.com/capitalize-ai/modelchat/internal/service"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

// NewRouter builds the bridge routes over chat. Storage readiness is
// checked through the chat store.
func NewRouter(chat *service.ChatService, corsOrigins []string, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(chat.Store())
	conversationHandler := NewConversationHandler(chat, log)
	messageHandler := NewMessageHandler(chat, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(corsOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", conversationHandler.Models)
		r.Delete("/conversations", conversationHandler.ClearAll)

		r.Route("/conversation", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.Delete("/", conversationHandler.Clear)
			r.Put("/model", conversationHandler.SwitchModel)
			r.Post("/regenerate", messageHandler.Regenerate)

			r.Post("/messages", messageHandler.Send)
			r.Patch("/messages/last", messageHandler.UpdateLast)
			r.Delete("/messages/last", messageHandler.DeleteLast)
		})
	})

	return r
}
