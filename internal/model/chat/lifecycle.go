package chat

import "fmt"

// Lifecycle tracks the request state of a widget's current exchange.
type Lifecycle int

const (
	Idle Lifecycle = iota
	Awaiting
	Streaming
	Completed
	Failed
)

var lifecycleNames = [...]string{
	Idle:      "idle",
	Awaiting:  "awaiting",
	Streaming: "streaming",
	Completed: "completed",
	Failed:    "failed",
}

func (l Lifecycle) String() string {
	if l < 0 || int(l) >= len(lifecycleNames) {
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
	return lifecycleNames[l]
}

// Active reports whether an exchange is in flight.
func (l Lifecycle) Active() bool {
	return l == Awaiting || l == Streaming
}

// Terminal reports whether l ends an exchange.
func (l Lifecycle) Terminal() bool {
	return l == Completed || l == Failed
}

// MarshalText renders the lifecycle by name so snapshots stay readable.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a lifecycle name.
func (l *Lifecycle) UnmarshalText(text []byte) error {
	for i, name := range lifecycleNames {
		if name == string(text) {
			*l = Lifecycle(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle %q", string(text))
}
