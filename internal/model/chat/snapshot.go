package chat

// Snapshot is a read-only view of a widget for rendering.
type Snapshot struct {
	Messages   []Message `json:"messages"`
	Lifecycle  Lifecycle `json:"lifecycle"`
	Outcome    Lifecycle `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Generation uint64    `json:"generation"`
}

// Last returns the newest transcript entry, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
