package swm

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/factory-data-core/internal/apperr"
)

// LoginFunc performs an SWM login and returns the new session token.
type LoginFunc func(ctx context.Context) (string, error)

// SessionCache holds a single SWM session and reissues it when it is older
// than the TTL. The lock is held across the login call, so concurrent callers
// wait for one login instead of racing their own.
type SessionCache struct {
	mu      sync.Mutex
	session *Session
	ttl     time.Duration
	login   LoginFunc
	now     func() time.Time
}

// NewSessionCache creates an empty cache.
func NewSessionCache(ttl time.Duration, login LoginFunc) *SessionCache {
	return &SessionCache{
		ttl:   ttl,
		login: login,
		now:   time.Now,
	}
}

// Get returns the cached token, logging in first when there is no session or
// it has expired. A failed or empty login yields apperr.ErrSessionNull and
// leaves the slot empty.
func (c *SessionCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.session != nil && now.Sub(c.session.CreatedAt) < c.ttl {
		return c.session.ID, nil
	}

	c.session = nil
	id, err := c.login(ctx)
	if err != nil {
		return "", apperr.ErrSessionNull.Wrap(err)
	}
	if id == "" {
		return "", apperr.ErrSessionNull.Withf("SWM login returned an empty session id")
	}

	c.session = &Session{ID: id, CreatedAt: now}
	return id, nil
}

// Invalidate drops the cached session so the next Get logs in again.
func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// Current returns a copy of the cached session, if any.
func (c *SessionCache) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}
