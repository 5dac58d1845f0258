package session

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/errors"
)

// Manager binds sessions to requests through a cookie.
type Manager struct {
	store  Store
	cookie string
	ttl    time.Duration
	secure bool
	log    zerolog.Logger
}

// NewManager creates a cookie manager over store.
func NewManager(store Store, cfg config.SessionConfig, log zerolog.Logger) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "pace_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		store:  store,
		cookie: name,
		ttl:    ttl,
		secure: cfg.SecureCookie,
		log:    log.With().Str("component", "session").Logger(),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Start returns the session named by the request cookie, or a new unsaved
// session when there is no cookie or the store no longer knows it.
func (m *Manager) Start(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return New(m.ttl), nil
	}

	sess, err := m.store.Load(r.Context(), c.Value)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return New(m.ttl), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Save extends the session's expiry, persists it and sets the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	now := time.Now()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(m.ttl)

	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	sess.fresh = false

	http.SetCookie(w, m.newCookie(sess.ID, int(m.ttl.Seconds())))
	return nil
}

// Renew moves the session to a fresh ID and saves it. The old ID stops
// resolving.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	old := sess.ID
	sess.ID = NewID()

	if !sess.IsNew() {
		if err := m.store.Delete(ctx, old); err != nil {
			m.log.Warn().Err(err).Msg("failed to delete previous session")
		}
	}
	return m.Save(ctx, w, sess)
}

// Destroy deletes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	http.SetCookie(w, m.newCookie("", -1))
	if sess == nil || sess.IsNew() {
		return nil
	}
	return m.store.Delete(ctx, sess.ID)
}

func (m *Manager) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
