package storefront

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const defaultIdleTTL = 30 * time.Minute

// Registry хранит живые сессии и выселяет простаивающие.
type Registry struct {
	deps    Dependencies
	idleTTL time.Duration
	now     func() time.Time
	logger  *log.Entry

	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption настраивает Registry.
type RegistryOption func(*Registry)

// WithIdleTTL задаёт время простоя, после которого сессия выселяется.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry создаёт пустой реестр сессий.
func NewRegistry(deps Dependencies, opts ...RegistryOption) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "storefront")
	}
	deps.Logger = logger

	r := &Registry{
		deps:     deps,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		logger:   logger.WithField("component", "session-registry"),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func registryKey(profileID, sessionID string) string {
	return profileID + "/" + sessionID
}

// Acquire возвращает живую сессию, создавая её при первом обращении.
// Новая сессия сразу разрешает ключ посетителя, чтобы выдать guest id.
func (r *Registry) Acquire(ctx context.Context, profileID, sessionID string) (*Session, error) {
	key := registryKey(profileID, sessionID)

	r.mu.RLock()
	session, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		session.touch(r.now())
		return session, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.sessions[key]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := NewSession(r.deps, profileID, sessionID)
		if err != nil {
			return nil, err
		}
		created.VisitorKey(ctx)

		r.mu.Lock()
		r.sessions[key] = created
		active := len(r.sessions)
		r.mu.Unlock()

		r.deps.Metrics.SetActiveSessions(active)
		r.logger.WithField("active_sessions", active).Debug("session created")
		return created, nil
	})
	if err != nil {
		return nil, err
	}

	session = v.(*Session)
	session.touch(r.now())
	return session, nil
}

// Len возвращает число живых сессий.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DeleteExpired выселяет не более limit сессий, простаивающих дольше idleTTL
// относительно before. Поверхности выселенных сессий сбрасываются.
func (r *Registry) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	if before.IsZero() {
		before = r.now()
	}
	cutoff := before.Add(-r.idleTTL)

	r.mu.Lock()
	evicted := make([]*Session, 0)
	for key, session := range r.sessions {
		if err := ctx.Err(); err != nil {
			r.mu.Unlock()
			return 0, err
		}
		if len(evicted) == limit {
			break
		}
		if session.idleSince().After(cutoff) {
			continue
		}
		delete(r.sessions, key)
		evicted = append(evicted, session)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	for _, session := range evicted {
		session.ResetSurfaces()
	}
	r.deps.Metrics.SetActiveSessions(active)
	return len(evicted), nil
}

// Close сбрасывает все сессии.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.ResetSurfaces()
	}
	r.deps.Metrics.SetActiveSessions(0)
}
