package studio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"headshot/internal/domain"
)

// DefaultSessionTTL is how long an untouched session is kept in memory.
const DefaultSessionTTL = 2 * time.Hour

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps live sessions in memory and evicts idle ones.
type Registry struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry builds a registry sharing deps across every session.
func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		deps:     deps.withDefaults(),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Open resumes the session with the given id or creates one. An empty id
// allocates a fresh identifier; unlocks persisted for a known id are reloaded.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	if s, err := r.Get(id); err == nil {
		return s, nil
	}

	s, err := NewSession(ctx, id, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		existing.lastSeen = r.now()
		return existing.session, nil
	}
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	return s, nil
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.lastSeen = r.now()
	return e.session, nil
}

// Close drops a session from memory. Persisted unlocks are kept.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL, skipping busy ones.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.sessions {
		if e.lastSeen.After(cutoff) || e.session.Busy() {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.deps.Logger.Info().Int("evicted", n).Int("live", r.Len()).Msg("studio: idle sessions evicted")
			}
		}
	}
}
