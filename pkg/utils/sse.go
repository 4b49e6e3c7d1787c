package utils

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SendSSEChunk writes one "data: <json>\n\n" record and flushes it. A write
// error usually means the client went away.
func SendSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal sse payload")
	}

	record := make([]byte, 0, len(data)+8)
	record = append(record, "data: "...)
	record = append(record, data...)
	record = append(record, "\n\n"...)

	if _, err := w.Write(record); err != nil {
		return errors.Wrap(err, "write sse record")
	}
	flusher.Flush()
	return nil
}
