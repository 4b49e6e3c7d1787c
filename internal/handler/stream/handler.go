package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/pkg/utils"
)

// Answerer produces answers for visitor questions.
type Answerer interface {
	Answer(ctx context.Context, question string) (*schema.Message, error)
	StreamAnswer(ctx context.Context, question string) (*schema.StreamReader[*schema.Message], error)
}

// Handler serves the answering API the widget consumes.
type Handler struct {
	answerer Answerer
}

// New creates a stream handler. A nil answerer makes every route answer 503.
func New(answerer Answerer) *Handler {
	return &Handler{answerer: answerer}
}

// RegisterRoutes 注册问答相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/rag/ask", h.handleAsk)
	r.Post("/rag/ask/stream", h.handleAskStream)
}

// AnswerResponse is the single-shot answer body. Sources is always empty
// since answers come straight from the model; clients still expect the key.
type AnswerResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// StreamResponse is one streamed record. Answer is cumulative.
type StreamResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Finished bool     `json:"finished"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	question, ok := h.readQuestion(w, r)
	if !ok {
		return
	}

	response, err := h.answerer.Answer(r.Context(), question)
	if err != nil {
		log.Error().Err(err).Str("component", "stream").Msg("answer generation failed")
		utils.RespondError(w, http.StatusInternalServerError, "Error answering question: "+err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, AnswerResponse{
		Question: question,
		Answer:   response.Content,
		Sources:  []string{},
	})
}

func (h *Handler) handleAskStream(w http.ResponseWriter, r *http.Request) {
	question, ok := h.readQuestion(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	answer, err := h.streamAnswer(r.Context(), w, flusher, question)
	if err != nil {
		if r.Context().Err() != nil {
			log.Debug().Err(err).Str("component", "stream").Msg("client went away mid-answer")
			return
		}
		// Generation errors become the final answer so the widget shows them.
		log.Error().Err(err).Str("component", "stream").Msg("answer stream failed")
		answer = "Error: " + err.Error()
	}

	if err := h.send(w, flusher, question, answer, true); err != nil {
		log.Debug().Err(err).Str("component", "stream").Msg("failed to send final record")
		return
	}
	log.Info().Str("component", "stream").Int("answer_len", len(answer)).Msg("answer streamed")
}

// streamAnswer relays model chunks as cumulative records and returns the
// full answer.
func (h *Handler) streamAnswer(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, question string) (string, error) {
	stream, err := h.answerer.StreamAnswer(ctx, question)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return builder.String(), nil
		}
		if recvErr != nil {
			return builder.String(), recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		builder.WriteString(chunk.Content)
		if err := h.send(w, flusher, question, builder.String(), false); err != nil {
			return builder.String(), err
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, question, answer string, finished bool) error {
	return utils.SendSSEChunk(w, flusher, StreamResponse{
		Question: question,
		Answer:   answer,
		Sources:  []string{},
		Finished: finished,
	})
}

func (h *Handler) readQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.answerer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "answering unavailable")
		return "", false
	}

	var payload struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	question := strings.TrimSpace(payload.Question)
	if question == "" {
		utils.RespondError(w, http.StatusBadRequest, "Question is required")
		return "", false
	}
	return question, true
}
