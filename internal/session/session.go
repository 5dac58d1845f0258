// Package session keeps per-browser state between requests.
//
// A Session is a small map of values identified by an opaque random ID that
// travels in a cookie. Stores persist sessions in process memory, Redis or a
// SQL table; Manager moves them between the store and the cookie.
package session

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Recognized session keys.
const (
	KeyAuthenticated = "authenticated"
	KeyUsername      = "username"
)

// Session is one browser's state.
type Session struct {
	ID        string         `json:"id"`
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`

	// fresh is true until the session has been saved once.
	fresh bool
}

// New returns an empty session with a random ID that expires after ttl.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        NewID(),
		Values:    make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
		fresh:     true,
	}
}

// NewID returns a random session ID.
func NewID() string {
	return uuid.NewString()
}

// IsNew reports whether the session has not been saved yet.
func (s *Session) IsNew() bool {
	return s.fresh
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Set stores val under key.
func (s *Session) Set(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
}

// Delete removes key.
func (s *Session) Delete(key string) {
	delete(s.Values, key)
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.Values[key]
	return ok
}

// Bool returns the value under key if it is a bool, else false.
func (s *Session) Bool(key string) bool {
	b, _ := s.Values[key].(bool)
	return b
}

// String returns the value under key if it is a string, else "".
func (s *Session) String(key string) string {
	str, _ := s.Values[key].(string)
	return str
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone returns a copy whose Values map is not shared.
func (s *Session) Clone() *Session {
	c := *s
	c.Values = maps.Clone(s.Values)
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	return &c
}

// Store persists sessions.
type Store interface {
	// Load returns the session with id, or errors.ErrSessionNotFound when it
	// does not exist or has expired.
	Load(ctx context.Context, id string) (*Session, error)

	// Save creates or replaces the session.
	Save(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}
