package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/solution-connector/assistant/internal/service/assistant"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/conversation"
	"github.com/zhouzirui/solution-connector/assistant/pkg/utils"
)

// Handler 聊天组件的HTTP处理器
type Handler struct {
	registry *assistant.Registry
	upgrader websocket.Upgrader
}

// New 创建聊天处理器
func New(registry *assistant.Registry) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Delete("/", h.handleDeleteSession)
		r.Post("/messages", h.handleSubmit)
		r.Get("/transcript", h.handleTranscript)
		r.Get("/ws", h.handleWebSocket)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, _ := h.registry.CreateSession(r.Context())
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 提交问题
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshot, err := controller.Submit(payload.Text)
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, assistant.ErrClosed):
		utils.RespondError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, snapshot)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, controller.Snapshot())
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*assistant.Controller, bool) {
	controller, err := h.registry.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return controller, true
}
