package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry keeps one Controller per open widget. Nothing survives a restart.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]*widget
	newController func() *Controller

	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool
}

type widget struct {
	session    chat.Session
	controller *Controller
	lastSeen   time.Time
}

// NewRegistry creates an empty registry that builds controllers with
// newController.
func NewRegistry(newController func() *Controller) *Registry {
	return &Registry{
		sessions:      make(map[string]*widget),
		newController: newController,
	}
}

// CreateSession provisions a fresh widget.
func (r *Registry) CreateSession(_ context.Context) (chat.Session, *Controller) {
	now := time.Now().UTC()
	w := &widget{
		session: chat.Session{
			ID:        uuid.NewString(),
			CreatedAt: now,
		},
		controller: r.newController(),
		lastSeen:   now,
	}

	r.mu.Lock()
	r.sessions[w.session.ID] = w
	r.mu.Unlock()

	return w.session, w.controller
}

// Get returns the controller for sessionID and marks the widget as seen.
func (r *Registry) Get(_ context.Context, sessionID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	w.lastSeen = time.Now()
	return w.controller, nil
}

// Remove closes and forgets a widget.
func (r *Registry) Remove(_ context.Context, sessionID string) error {
	r.mu.Lock()
	w, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	w.controller.Close()
	return nil
}

// Len returns the number of open widgets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close shuts down every widget.
func (r *Registry) Close() {
	r.mu.Lock()
	widgets := make([]*widget, 0, len(r.sessions))
	for id, w := range r.sessions {
		widgets = append(widgets, w)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, w := range widgets {
		w.controller.Close()
	}
}

// SetEvictionConfig sets how long a widget may stay untouched and how often
// the eviction loop looks. A zero idle disables eviction.
func (r *Registry) SetEvictionConfig(idle, interval time.Duration) {
	r.mu.Lock()
	r.evictIdle = idle
	r.evictInterval = interval
	r.mu.Unlock()
}

// StartEvictionLoop removes idle widgets until ctx is done. It does nothing
// when eviction is disabled or a loop is already running.
func (r *Registry) StartEvictionLoop(ctx context.Context) {
	r.mu.Lock()
	if r.evictRunning || r.evictIdle <= 0 || r.evictInterval <= 0 {
		r.mu.Unlock()
		return
	}
	r.evictRunning = true
	interval := r.evictInterval
	r.mu.Unlock()

	go r.runEvictionLoop(ctx, interval)
}

func (r *Registry) runEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.evictRunning = false
			r.mu.Unlock()
			return
		case now := <-ticker.C:
			if n := r.evictIdleOnce(now); n > 0 {
				log.Info().Str("component", "registry").Int("evicted", n).Int("remaining", r.Len()).Msg("evicted idle widgets")
			}
		}
	}
}

// evictIdleOnce closes widgets that are not busy and have seen no activity
// for the idle period, and returns how many it removed.
func (r *Registry) evictIdleOnce(now time.Time) int {
	r.mu.Lock()
	idle := r.evictIdle
	if idle <= 0 {
		r.mu.Unlock()
		return 0
	}
	widgets := make([]*widget, 0, len(r.sessions))
	for _, w := range r.sessions {
		widgets = append(widgets, w)
	}
	r.mu.Unlock()

	evicted := 0
	for _, w := range widgets {
		if w.controller.Busy() {
			continue
		}

		r.mu.Lock()
		current, ok := r.sessions[w.session.ID]
		last := w.lastSeen
		if active := w.controller.LastActivity(); active.After(last) {
			last = active
		}
		if !ok || current != w || now.Sub(last) < idle {
			r.mu.Unlock()
			continue
		}
		delete(r.sessions, w.session.ID)
		r.mu.Unlock()

		w.controller.Close()
		log.Debug().Str("component", "registry").Str("session_id", w.session.ID).Msg("widget evicted")
		evicted++
	}
	return evicted
}
