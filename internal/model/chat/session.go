package chat

import "time"

// Session captures one ephemeral assistant widget.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
