package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/solution-connector/assistant/internal/service/answer"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/assistant"
)

func TestRoutersServeHealthz(t *testing.T) {
	registry := assistant.NewRegistry(func() *assistant.Controller {
		return assistant.NewController(answer.NewClient("http://127.0.0.1:0", nil), assistant.Options{})
	})
	defer registry.Close()

	for name, router := range map[string]http.Handler{
		"widget": NewRouter(registry),
		"answer": NewAnswerRouter(nil),
	} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, resp.Code, name)
		require.NotEmpty(t, resp.Header().Get("Access-Control-Allow-Origin"), name)
	}
}

func TestRouterMountsWidgetRoutes(t *testing.T) {
	registry := assistant.NewRegistry(func() *assistant.Controller {
		return assistant.NewController(answer.NewClient("http://127.0.0.1:0", nil), assistant.Options{})
	})
	defer registry.Close()

	resp := httptest.NewRecorder()
	NewRouter(registry).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, 1, registry.Len())
}

func TestAnswerRouterWithoutModel(t *testing.T) {
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rag/ask", nil)
	NewAnswerRouter(nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
