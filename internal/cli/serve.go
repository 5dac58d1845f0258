package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/pace/internal/auth"
	"github.com/canonica-labs/pace/internal/gateway"
	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/session"
	"github.com/canonica-labs/pace/internal/status"
	"github.com/canonica-labs/pace/internal/viewer"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the viewer over HTTP",
		Long: `Serve the login page, dashboard and JSON API.

Nothing connects to the database until a user logs in. Logging out clears
the shared connection and every cached listing and row snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			return c.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

// app is the assembled server.
type app struct {
	handler  http.Handler
	viewer   *viewer.Service
	sessions session.Store
}

func (a *app) Close() error {
	return stderrors.Join(a.viewer.Close(), a.sessions.Close())
}

// buildApp wires every component of the server from the loaded config.
func (c *CLI) buildApp(ctx context.Context, log zerolog.Logger, reg *prometheus.Registry) (*app, error) {
	metrics := observability.NewMetrics(reg)
	stats := status.NewAccessStats(5)
	audit := observability.MultiAccessLogger{
		observability.NewAccessLogger(log),
		stats,
	}

	svc, err := c.newViewer(log, metrics, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create viewer: %w", err)
	}

	store, err := session.NewStore(ctx, c.cfg.Session, log)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	gate := auth.NewGate(auth.NewPlaceholderAuthenticator(), svc,
		auth.WithLogger(log),
		auth.WithMetrics(metrics),
		auth.WithAccessLogger(audit),
	)

	gw, err := gateway.NewGateway(gateway.Deps{
		Viewer:   svc,
		Gate:     gate,
		Sessions: session.NewManager(store, c.cfg.Session, log),
		Checker:  c.newChecker(svc, store),
		Stats:    stats,
		Gatherer: reg,
		Logger:   log,
	}, gateway.Config{Version: Version})
	if err != nil {
		_ = svc.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &app{handler: gw, viewer: svc, sessions: store}, nil
}

// newChecker builds the readiness checks shared by /readyz and doctor.
func (c *CLI) newChecker(svc *viewer.Service, store session.Store) *status.Checker {
	checker := status.NewChecker(Version, svc.Generation)
	checker.Add("database", func(ctx context.Context) (string, error) {
		h, err := svc.Ping(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("connected (%s), opened %s",
			c.cfg.Database.DriverOrDefault(), humanize.Time(h.OpenedAt)), nil
	})
	checker.Add("sessions", func(ctx context.Context) (string, error) {
		if p, ok := store.(session.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%s store", c.cfg.Session.Backend), nil
	})
	return checker
}

func (c *CLI) runServe(ctx context.Context) error {
	log, err := c.logger(true)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := c.buildApp(ctx, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	server := &http.Server{
		Addr:         c.cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
		IdleTimeout:  c.cfg.Server.IdleTimeout,
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", c.cfg.Server.Addr).
			Str("version", Version).
			Str("commit", GitCommit).
			Str("session_backend", c.cfg.Session.Backend).
			Msg("pace viewer starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("pace viewer stopped")
	return nil
}
