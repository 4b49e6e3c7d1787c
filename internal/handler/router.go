package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/solution-connector/assistant/internal/handler/chat"
	"github.com/zhouzirui/solution-connector/assistant/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/solution-connector/assistant/internal/middleware"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/assistant"
	"github.com/zhouzirui/solution-connector/assistant/pkg/utils"
)

func newBaseRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// NewRouter wires the assistant widget routes.
func NewRouter(registry *assistant.Registry) http.Handler {
	r := newBaseRouter()
	chatHandler := chat.New(registry)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
	})

	return r
}

// NewAnswerRouter wires the answering service. answerer may be nil when no
// model is configured.
func NewAnswerRouter(answerer stream.Answerer) http.Handler {
	r := newBaseRouter()
	streamHandler := stream.New(answerer)

	r.Route("/api", func(api chi.Router) {
		streamHandler.RegisterRoutes(api)
	})

	return r
}
