package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/model/chat"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/answer"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/conversation"
)

const DefaultErrorMessage = "Sorry, I couldn't get an answer right now. Please try again."

var (
	ErrIdleTimeout = errors.New("answer stream idle timeout")
	ErrClosed      = errors.New("assistant widget closed")
	errSuperseded  = errors.New("exchange superseded by a newer question")
)

// Asker opens an answer exchange for a question.
type Asker interface {
	Ask(ctx context.Context, question string) (*answer.Stream, error)
}

// Options tunes a Controller.
type Options struct {
	// IdleTimeout fails an exchange that produces no event for this long.
	// Zero waits forever.
	IdleTimeout time.Duration
	// ErrorMessage is shown in the assistant entry when an exchange fails
	// before any partial answer arrived.
	ErrorMessage string
}

// Controller drives question/answer exchanges for one widget. Each Submit
// supersedes the previous exchange; events from superseded exchanges are
// discarded by comparing generation tokens under mu.
type Controller struct {
	asker Asker
	opts  Options

	mu          sync.Mutex
	state       *conversation.State
	generation  uint64
	lifecycle   chat.Lifecycle
	outcome     chat.Lifecycle
	lastErr     string
	cancel      context.CancelCauseFunc
	subscribers map[uint64]chan chat.Snapshot
	nextSubID   uint64
	closed      bool
	running     int
	idle        *sync.Cond
	lastActive  time.Time
}

// NewController creates an idle widget controller.
func NewController(asker Asker, opts Options) *Controller {
	if strings.TrimSpace(opts.ErrorMessage) == "" {
		opts.ErrorMessage = DefaultErrorMessage
	}
	c := &Controller{
		asker:       asker,
		opts:        opts,
		state:       conversation.NewState(),
		subscribers: make(map[uint64]chan chat.Snapshot),
		lastActive:  time.Now(),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Submit appends the question and an open assistant entry, then starts the
// exchange in the background. Blank questions are rejected with
// conversation.ErrInvalidInput and leave the widget untouched.
func (c *Controller) Submit(question string) (chat.Snapshot, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return c.Snapshot(), conversation.ErrInvalidInput
	}

	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}

	c.supersedeLocked(errSuperseded)
	c.generation++
	gen := c.generation

	_, err := c.state.AppendUser(question)
	invariant(err)
	_, err = c.state.AppendOpenAssistantPlaceholder()
	invariant(err)

	ctx, cancel := context.WithCancelCause(context.Background())
	c.cancel = cancel
	c.lifecycle = chat.Awaiting
	c.publishLocked()
	snap := c.snapshotLocked()
	c.running++
	c.lastActive = time.Now()
	c.mu.Unlock()

	log.Info().Str("component", "assistant").Uint64("generation", gen).Int("question_len", len(question)).Msg("question submitted")

	go c.run(ctx, cancel, gen, question)
	return snap, nil
}

// Snapshot returns the current transcript and lifecycle.
func (c *Controller) Snapshot() chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change. When
// the channel is full the oldest pending snapshot is dropped, so a slow
// reader always ends up with the latest state. The returned func
// unsubscribes and closes the channel.
func (c *Controller) Subscribe(buffer int) (<-chan chat.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan chat.Snapshot, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.lastActive = time.Now()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
				c.lastActive = time.Now()
			}
		})
	}
}

// Wait blocks until no exchange is running. It may be called while other
// goroutines keep submitting; it then returns at the first quiet moment.
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.running > 0 {
		c.idle.Wait()
	}
}

// Busy reports whether an exchange is in flight or someone is watching.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running > 0 || len(c.subscribers) > 0
}

// LastActivity returns when the widget last submitted, finished an
// exchange or gained or lost a subscriber.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Close aborts the active exchange, closes subscriber channels and waits
// for background work to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.supersedeLocked(ErrClosed)
		c.generation++
		c.lifecycle = chat.Idle
		for id, ch := range c.subscribers {
			delete(c.subscribers, id)
			close(ch)
		}
	}
	c.mu.Unlock()

	c.Wait()
}

func (c *Controller) run(ctx context.Context, cancel context.CancelCauseFunc, gen uint64, question string) {
	defer c.exchangeDone()
	defer cancel(nil)

	watchdog := newIdleWatchdog(c.opts.IdleTimeout, cancel)
	defer watchdog.stop()

	stream, err := c.asker.Ask(ctx, question)
	if err != nil {
		c.fail(ctx, gen, err)
		return
	}
	defer stream.Close()

	if !c.transition(gen, chat.Streaming) {
		return
	}
	watchdog.kick()

	var last string
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.complete(gen, last)
			return
		}
		if err != nil {
			c.fail(ctx, gen, err)
			return
		}
		watchdog.kick()

		last = ev.AnswerText
		if ev.IsFinal {
			c.complete(gen, ev.AnswerText)
			return
		}
		if !c.update(gen, ev.AnswerText) {
			return
		}
	}
}

func (c *Controller) exchangeDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running--
	c.lastActive = time.Now()
	if c.running == 0 {
		c.idle.Broadcast()
	}
}

func (c *Controller) transition(gen uint64, next chat.Lifecycle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.lifecycle = next
	c.publishLocked()
	return true
}

func (c *Controller) update(gen uint64, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	invariant(c.state.UpdateOpenAssistant(text))
	c.publishLocked()
	return true
}

func (c *Controller) complete(gen uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}

	invariant(c.state.UpdateOpenAssistant(text))
	c.state.CloseOpenAssistant()
	c.finishLocked(chat.Completed, "")

	log.Info().Str("component", "assistant").Uint64("generation", gen).Int("answer_len", len(text)).Msg("exchange completed")
}

func (c *Controller) fail(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = cause
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		log.Debug().Err(err).Str("component", "assistant").Uint64("generation", gen).Msg("ignoring failure of superseded exchange")
		return
	}

	if open, ok := c.state.Open(); ok && open.Text == "" {
		invariant(c.state.UpdateOpenAssistant(c.describeFailure(err)))
	}
	c.state.CloseOpenAssistant()
	c.finishLocked(chat.Failed, err.Error())

	log.Warn().Err(err).Str("component", "assistant").Uint64("generation", gen).Msg("exchange failed")
}

// finishLocked records the terminal state, then returns the widget to Idle.
// Subscribers observe both transitions.
func (c *Controller) finishLocked(outcome chat.Lifecycle, detail string) {
	if !outcome.Terminal() {
		invariant(errors.Wrapf(conversation.ErrInvariantViolation, "finish with non-terminal lifecycle %s", outcome))
	}
	c.cancel = nil
	c.outcome = outcome
	c.lastErr = detail
	c.lifecycle = outcome
	c.publishLocked()
	c.lifecycle = chat.Idle
	c.publishLocked()
}

func (c *Controller) supersedeLocked(cause error) {
	if c.cancel != nil {
		c.cancel(cause)
		c.cancel = nil
	}
	if c.lifecycle.Active() {
		log.Info().Str("component", "assistant").Uint64("generation", c.generation).Stringer("lifecycle", c.lifecycle).Msg("superseding in-flight exchange")
	}
	c.state.CloseOpenAssistant()
}

func (c *Controller) describeFailure(err error) string {
	var statusErr *answer.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("%s (status %d)", c.opts.ErrorMessage, statusErr.StatusCode)
	case errors.Is(err, ErrIdleTimeout):
		return fmt.Sprintf("%s (timed out)", c.opts.ErrorMessage)
	default:
		return c.opts.ErrorMessage
	}
}

func (c *Controller) snapshotLocked() chat.Snapshot {
	return chat.Snapshot{
		Messages:   c.state.Messages(),
		Lifecycle:  c.lifecycle,
		Outcome:    c.outcome,
		Error:      c.lastErr,
		Generation: c.generation,
	}
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// invariant panics on transcript invariant violations, which only a bug in
// the controller can cause.
func invariant(err error) {
	if err != nil {
		panic(errors.Wrap(err, "assistant controller"))
	}
}
