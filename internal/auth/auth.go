// Package auth gates the viewer behind a login.
//
// Credential verification is a placeholder: any non-empty username and
// password are accepted. The Authenticator interface is where a real check
// plugs in.
package auth

import (
	"context"
	"time"

	"github.com/canonica-labs/pace/internal/errors"
)

// User represents an authenticated user.
type User struct {
	// Name is the login name.
	Name string `json:"name"`

	// LoggedInAt is when the login succeeded.
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Authenticator checks a username and password.
type Authenticator interface {
	// Authenticate returns the user or an error describing why the
	// credentials were refused.
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// PlaceholderAuthenticator accepts any non-empty username and password.
type PlaceholderAuthenticator struct{}

// NewPlaceholderAuthenticator creates a PlaceholderAuthenticator.
func NewPlaceholderAuthenticator() *PlaceholderAuthenticator {
	return &PlaceholderAuthenticator{}
}

// Authenticate succeeds iff both inputs are non-empty.
func (PlaceholderAuthenticator) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if username == "" || password == "" {
		return nil, errors.NewAuthValidation()
	}
	return &User{Name: username, LoggedInAt: time.Now()}, nil
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "pace_user"

// ContextWithUser returns a new context with the user attached.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the user from the context.
// Returns nil if no user is attached.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// UsernameFromContext returns the attached user's name, or "".
func UsernameFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.Name
	}
	return ""
}
