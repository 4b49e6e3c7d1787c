package chat

import "time"

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one transcript entry. Only the open assistant entry of the
// active exchange ever changes after it is appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Open      bool      `json:"open"`
	CreatedAt time.Time `json:"createdAt"`
}
