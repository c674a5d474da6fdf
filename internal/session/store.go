// Package session maps opaque session ids to authenticated identities for the
// lifetime of a login. Sessions live in memory only; a restart logs everyone
// out, which is acceptable loss.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound covers unknown, destroyed and expired session ids alike.
var ErrNotFound = errors.New("SESI_TIDAK_VALID: session not found")

// DefaultTTL bounds session lifetime. The store accepts 0 for no expiry, but
// unbounded sessions are a known gap, so the server defaults to this.
const DefaultTTL = 24 * time.Hour

// Identity is the authenticated user a session resolves to.
type Identity struct {
	UserID int64
	Nama   string
	Email  string
}

type record struct {
	identity Identity
	loginAt  time.Time
}

// Store is a mutex-guarded token map, constructed once at process start and
// passed to handlers by reference.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]record
	ttl      time.Duration
	now      func() time.Time
}

// NewStore builds a session store. ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]record),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a fresh session for identity and returns its id. The id is
// a UUID, so it is unguessable; the sesi_ prefix distinguishes session ids
// from other tokens in logs and client storage.
func (s *Store) Create(identity Identity) string {
	token := "sesi_" + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = record{
		identity: identity,
		loginAt:  s.now(),
	}
	return token
}

// Lookup resolves a session id to its identity. Expired sessions report
// ErrNotFound exactly like unknown ones.
func (s *Store) Lookup(token string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[token]
	if !ok {
		return Identity{}, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(rec.loginAt) >= s.ttl {
		return Identity{}, ErrNotFound
	}
	return rec.identity, nil
}

// Destroy removes a session. Destroying an id that does not exist is not an
// error.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Sweep drops expired sessions and reports how many were removed. A no-op
// when expiry is disabled.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, rec := range s.sessions {
		if now.Sub(rec.loginAt) >= s.ttl {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, including not-yet-swept expired
// ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
