// Package gateway serves the viewer over HTTP: the login and dashboard pages,
// a small JSON API, health, readiness and metrics.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/auth"
	"github.com/canonica-labs/pace/internal/catalog"
	"github.com/canonica-labs/pace/internal/session"
	"github.com/canonica-labs/pace/internal/status"
	"github.com/canonica-labs/pace/internal/tables"
	"github.com/canonica-labs/pace/pkg/api"
)

// Viewer is the data access the gateway needs.
type Viewer interface {
	ListTables(ctx context.Context) (catalog.Result, error)
	FetchRows(ctx context.Context, table string, limit int) (*tables.Snapshot, error)
	Generation() uint64
}

// Config holds gateway settings.
type Config struct {
	// Version is reported by /health and /readyz.
	Version string
}

// Deps are the collaborators a Gateway is built from. Viewer, Gate and
// Sessions are required.
type Deps struct {
	Viewer   Viewer
	Gate     *auth.Gate
	Sessions *session.Manager
	Checker  *status.Checker
	Stats    *status.AccessStats
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Gateway is the HTTP handler of the viewer.
type Gateway struct {
	viewer   Viewer
	gate     *auth.Gate
	sessions *session.Manager
	checker  *status.Checker
	stats    *status.AccessStats
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	pages    *pages
	config   Config
	router   chi.Router
}

// NewGateway creates a Gateway and its routes.
func NewGateway(deps Deps, cfg Config) (*Gateway, error) {
	if deps.Viewer == nil {
		return nil, fmt.Errorf("gateway: viewer is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("gateway: auth gate is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("gateway: session manager is required")
	}

	p, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	if deps.Checker == nil {
		deps.Checker = status.NewChecker(cfg.Version, deps.Viewer.Generation)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	g := &Gateway{
		viewer:   deps.Viewer,
		gate:     deps.Gate,
		sessions: deps.Sessions,
		checker:  deps.Checker,
		stats:    deps.Stats,
		gatherer: deps.Gatherer,
		log:      deps.Logger.With().Str("component", "gateway").Logger(),
		pages:    p,
		config:   cfg,
	}
	g.router = g.routes()
	return g, nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

func (g *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		g.requestContext,
		g.accessLog,
		middleware.Recoverer,
	)

	r.Get(api.EndpointHealth, g.handleHealth)
	r.Get(api.EndpointReady, g.handleReady)
	r.Method(http.MethodGet, api.EndpointMetrics, promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(g.loadSession)

		r.Get(api.PathRoot, g.handleIndex)
		r.Post(api.PathLogin, g.handleLogin)
		r.Post(api.PathLogout, g.handleLogout)
		r.Get(api.EndpointSession, g.handleSessionStatus)

		r.Group(func(r chi.Router) {
			r.Use(g.requireAuth)

			r.Get(api.EndpointTables, g.handleListTables)
			r.Get(api.EndpointTable, g.handleTableData)
			r.Get(api.EndpointStatus, g.handleStatus)
		})
	})

	return r
}
