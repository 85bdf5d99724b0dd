package memory

import (
	"time"

	"mindful-be/pkg/companion"

	"github.com/patrickmn/go-cache"
)

// SessionRepository holds live companion sessions. Sessions idle longer
// than the ttl are evicted and closed.
type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}

	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*companion.Session); ok {
			s.Close()
		}
	})
	return &SessionRepository{cache: c, ttl: ttl}
}

func (r *SessionRepository) Save(session *companion.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

// Get returns the session and extends its lifetime.
func (r *SessionRepository) Get(sessionID string) (*companion.Session, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	s := x.(*companion.Session)
	r.cache.Set(sessionID, s, cache.DefaultExpiration)
	return s, true
}

// Peek returns the session without extending its lifetime.
func (r *SessionRepository) Peek(sessionID string) (*companion.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*companion.Session), true
	}
	return nil, false
}

// Delete removes and closes the session.
func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// Flush closes every held session.
func (r *SessionRepository) Flush() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
