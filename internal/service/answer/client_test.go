package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAskStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var payload Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "What is Deep Strat?", payload.Question)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"answer\":\"Hi\",\"finished\":false}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"answer\":\"Hi there\",\"finished\":true}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	stream, err := client.Ask(context.Background(), "What is Deep Strat?")
	require.NoError(t, err)
	defer stream.Close()
	require.NotEmpty(t, stream.RequestID)

	events, err := drain(t, stream)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, twoRecordEvents, events)
}

func TestClientAskSingleShot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"question":"q","answer":"all at once","sources":[]}`)
	}))
	defer server.Close()

	stream, err := NewClient(server.URL, nil).Ask(context.Background(), "q")
	require.NoError(t, err)
	defer stream.Close()

	events, err := drain(t, stream)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []AnswerEvent{{AnswerText: "all at once", IsFinal: true}}, events)
}

func TestClientAskStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream unavailable\n")
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Ask(context.Background(), "q")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Equal(t, "upstream unavailable", statusErr.Body)
	require.Contains(t, statusErr.Error(), "502")
}

func TestClientAskConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, nil).Ask(context.Background(), "q")
	require.Error(t, err)
}

func TestClientAskCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, nil).Ask(ctx, "q")
	require.ErrorIs(t, err, context.Canceled)
}
