package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/canonica-labs/pace/internal/auth"
	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/session"
	"github.com/canonica-labs/pace/pkg/api"
)

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// requestContext copies the chi request ID into the access log context and
// echoes it in the response.
func (g *Gateway) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		w.Header().Set(api.HeaderRequestID, id)
		ctx := observability.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		g.log.Debug().
			Str("request_id", observability.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// loadSession attaches the caller's session, and the user when logged in.
func (g *Gateway) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.sessions.Start(r)
		if err != nil {
			g.log.Error().Err(err).Msg("loading session failed")
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		if user := g.gate.User(sess); user != nil {
			ctx = auth.ContextWithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.gate.IsAuthenticated(sessionFrom(r.Context())) {
			writeJSONError(w, http.StatusUnauthorized, "authentication required", "", "log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}
