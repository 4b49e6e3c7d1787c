package assistant

import (
	"context"
	"time"
)

// idleWatchdog cancels an exchange when kick is not called within timeout.
// A zero timeout disables it.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
}

func newIdleWatchdog(timeout time.Duration, cancel context.CancelCauseFunc) *idleWatchdog {
	if timeout <= 0 {
		return nil
	}
	return &idleWatchdog{
		timeout: timeout,
		timer:   time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) }),
	}
}

func (w *idleWatchdog) kick() {
	if w == nil {
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *idleWatchdog) stop() {
	if w == nil {
		return
	}
	w.timer.Stop()
}
