package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 4 * 1024

// StatusError reports a non-success response from the answering service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("answer service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("answer service returned status %d: %s", e.StatusCode, e.Body)
}

// Request is the payload sent to the answering service.
type Request struct {
	Question string `json:"question"`
}

// Stream is an open answer exchange. Callers must Close it.
type Stream struct {
	EventStream
	RequestID string
	body      io.ReadCloser
}

// Close releases the response body.
func (s *Stream) Close() error {
	if s == nil || s.body == nil {
		return nil
	}
	return s.body.Close()
}

// Client talks to a fixed answering-service endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for endpoint. The http.Client must not carry an
// overall Timeout, since answers stream for as long as the model writes.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: httpClient,
	}
}

// Endpoint returns the configured service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ask posts question and returns the decoded response stream. Cancelling ctx
// aborts the underlying request and any pending read.
func (c *Client) Ask(ctx context.Context, question string) (*Stream, error) {
	body, err := json.Marshal(Request{Question: question})
	if err != nil {
		return nil, errors.Wrap(err, "marshal question")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send question")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var events EventStream
	if isJSON(resp.Header.Get("Content-Type")) {
		events = NewSingleShot(resp.Body)
	} else {
		events = NewDecoder(resp.Body)
	}

	log.Debug().
		Str("component", "answer").
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("answer stream opened")

	return &Stream{EventStream: events, RequestID: requestID, body: resp.Body}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
