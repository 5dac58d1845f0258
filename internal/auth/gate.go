package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/session"
)

// Invalidator drops every cached connection and query result.
type Invalidator interface {
	Reset()
}

// Gate decides between the login form and the protected view, and performs
// login and logout against a session.
type Gate struct {
	authn       Authenticator
	invalidator Invalidator
	log         zerolog.Logger
	metrics     *observability.Metrics
	audit       observability.AccessLogger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(log zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.log = observability.Component(log, "auth")
	}
}

// WithMetrics sets the gate's metrics.
func WithMetrics(metrics *observability.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// WithAccessLogger sets where login and logout events are audited.
func WithAccessLogger(audit observability.AccessLogger) GateOption {
	return func(g *Gate) {
		g.audit = audit
	}
}

// NewGate creates a Gate. invalidator is reset on every logout.
func NewGate(authn Authenticator, invalidator Invalidator, opts ...GateOption) *Gate {
	g := &Gate{
		authn:       authn,
		invalidator: invalidator,
		log:         zerolog.Nop(),
		audit:       observability.NoopAccessLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAuthenticated reports whether sess holds a successful login.
func (g *Gate) IsAuthenticated(sess *session.Session) bool {
	return sess != nil && sess.Bool(session.KeyAuthenticated)
}

// User returns the logged-in user of sess, or nil.
func (g *Gate) User(sess *session.Session) *User {
	if !g.IsAuthenticated(sess) {
		return nil
	}
	return &User{Name: sess.String(session.KeyUsername)}
}

// Login authenticates the credentials and marks sess as authenticated.
// On failure sess is left untouched and the authenticator's error returned.
func (g *Gate) Login(ctx context.Context, sess *session.Session, username, password string) (*User, error) {
	start := time.Now()

	user, err := g.authn.Authenticate(ctx, username, password)
	if err != nil {
		g.metrics.Login(observability.OutcomeRejected)
		g.record(ctx, observability.ActionLogin, username, start, observability.OutcomeRejected, err)
		return nil, err
	}

	sess.Set(session.KeyAuthenticated, true)
	sess.Set(session.KeyUsername, user.Name)

	g.metrics.Login(observability.OutcomeSuccess)
	g.record(ctx, observability.ActionLogin, user.Name, start, observability.OutcomeSuccess, nil)
	return user, nil
}

// Logout removes the login from sess and resets every cached connection and
// query result. The caches are shared, so other sessions requery on their
// next request.
func (g *Gate) Logout(ctx context.Context, sess *session.Session) {
	start := time.Now()
	username := ""
	if sess != nil {
		username = sess.String(session.KeyUsername)
		sess.Delete(session.KeyAuthenticated)
		sess.Delete(session.KeyUsername)
	}

	if g.invalidator != nil {
		g.invalidator.Reset()
	}

	g.record(ctx, observability.ActionLogout, username, start, observability.OutcomeSuccess, nil)
}

func (g *Gate) record(ctx context.Context, action, user string, start time.Time, outcome string, cause error) {
	entry := observability.AccessLogEntry{
		RequestID: observability.RequestIDFromContext(ctx),
		User:      user,
		Action:    action,
		Duration:  time.Since(start),
		Outcome:   outcome,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := g.audit.LogAccess(ctx, entry); err != nil {
		g.log.Warn().Err(err).Str("action", action).Msg("failed to write access event")
	}
}
