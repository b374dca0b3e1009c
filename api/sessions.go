package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"prism-task-editor/domain"
	"prism-task-editor/form"
)

var (
	// ErrSessionNotFound is returned for unknown or expired editor sessions.
	ErrSessionNotFound = errors.New("editor session not found")
	// ErrTooManySessions is returned when the registry is full.
	ErrTooManySessions = errors.New("too many editor sessions")
)

// Session is one open task editor. It lives only in memory.
type Session struct {
	id   string
	form *form.Controller
	done chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Form returns the controller of this editor.
func (s *Session) Form() *form.Controller { return s.form }

// Done is closed when the session is deleted or evicted.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry owns the open editor sessions and evicts idle ones.
type Registry struct {
	schema *form.Schema
	submit *form.SubmitHandler
	ttl    time.Duration
	max    int
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions idle for longer than ttl are evicted by Sweep.
func NewRegistry(schema *form.Schema, submit *form.SubmitHandler, ttl time.Duration, max int) *Registry {
	if schema == nil {
		panic("api.NewRegistry: schema is nil")
	}
	return &Registry{
		schema:   schema,
		submit:   submit,
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new editor. A non-nil hint is recorded on the form but does not populate it.
func (r *Registry) Create(hint *domain.TaskDraft) (*Session, error) {
	id := uuid.NewString()
	var opts []form.Option
	if hint != nil {
		opts = append(opts, form.WithTaskHint(*hint))
	}
	var onSubmit form.SubmitFunc
	if r.submit != nil {
		onSubmit = r.submit.For(id)
	}
	s := &Session{
		id:       id,
		form:     form.NewController(r.schema, onSubmit, opts...),
		done:     make(chan struct{}),
		lastSeen: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, ErrTooManySessions
	}
	r.sessions[id] = s
	return s, nil
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes the session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	close(s.done)
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		close(s.done)
	}
	return len(expired)
}

// Touch marks the session as used without looking it up again.
func (r *Registry) Touch(s *Session) {
	s.touch(r.now())
}

// interval is how often the sweeper runs and open streams report activity.
func (r *Registry) interval() time.Duration {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
