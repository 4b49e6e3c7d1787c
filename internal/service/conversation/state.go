package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/solution-connector/assistant/internal/model/chat"
)

var (
	ErrInvalidInput       = errors.New("message text is empty")
	ErrInvariantViolation = errors.New("transcript invariant violated")
)

// State owns one widget's transcript: closed entries in an append-only
// slice plus at most one open assistant entry that is always last.
//
// State is not safe for concurrent use; callers serialize access.
type State struct {
	closed []chat.Message
	open   *chat.Message
	now    func() time.Time
}

// NewState returns an empty transcript.
func NewState() *State {
	return &State{
		closed: make([]chat.Message, 0, 16),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AppendUser appends a closed user entry.
func (s *State) AppendUser(text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrInvalidInput
	}
	if s.open != nil {
		return chat.Message{}, ErrInvariantViolation
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderUser,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.closed = append(s.closed, msg)
	return msg, nil
}

// AppendOpenAssistantPlaceholder appends an empty assistant entry that stays
// open until CloseOpenAssistant.
func (s *State) AppendOpenAssistantPlaceholder() (chat.Message, error) {
	if s.open != nil {
		return chat.Message{}, ErrInvariantViolation
	}

	s.open = &chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderAssistant,
		Open:      true,
		CreatedAt: s.now(),
	}
	return *s.open, nil
}

// UpdateOpenAssistant replaces the text of the open assistant entry.
func (s *State) UpdateOpenAssistant(text string) error {
	if s.open == nil || s.open.Sender != chat.SenderAssistant {
		return ErrInvariantViolation
	}
	s.open.Text = text
	return nil
}

// CloseOpenAssistant freezes the open entry. Calling it with nothing open is
// a no-op.
func (s *State) CloseOpenAssistant() {
	if s.open == nil {
		return
	}
	msg := *s.open
	msg.Open = false
	s.closed = append(s.closed, msg)
	s.open = nil
}

// Open returns the open entry, if any.
func (s *State) Open() (chat.Message, bool) {
	if s.open == nil {
		return chat.Message{}, false
	}
	return *s.open, true
}

// Len returns the number of entries including the open one.
func (s *State) Len() int {
	if s.open != nil {
		return len(s.closed) + 1
	}
	return len(s.closed)
}

// Messages returns a copy of the transcript in insertion order.
func (s *State) Messages() []chat.Message {
	out := make([]chat.Message, 0, s.Len())
	out = append(out, s.closed...)
	if s.open != nil {
		out = append(out, *s.open)
	}
	return out
}
