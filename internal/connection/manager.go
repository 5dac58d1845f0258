// Package connection manages the single process-wide database handle.
//
// The handle is built lazily from the credential source on first use and
// cached per generation, not per credential values. Invalidate starts a new
// generation; the next Get opens a fresh handle.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/observability"
)

// Handle is one live database pool plus the dialect used to talk to it.
type Handle struct {
	// ID identifies this handle; memoized query results are keyed by it.
	ID string

	// Generation is the cache generation the handle was opened in.
	Generation uint64

	// DB is the connection pool.
	DB *sql.DB

	// Adapter phrases statements for DB's dialect.
	Adapter adapters.Adapter

	// OpenedAt is when the handle was opened.
	OpenedAt time.Time
}

// OpenFunc opens a database pool and reports the adapter that speaks to it.
type OpenFunc func(ctx context.Context) (*sql.DB, adapters.Adapter, error)

// Manager memoizes a single Handle per generation.
type Manager struct {
	open    OpenFunc
	log     zerolog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	gen    uint64
	handle *Handle

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = observability.Component(log, "connection")
	}
}

// WithMetrics sets the manager's metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager that opens handles with open.
func NewManager(open OpenFunc, opts ...Option) *Manager {
	m := &Manager{
		open: open,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the handle for the current generation, opening it if needed.
// Concurrent first calls share one open. A failed open is not cached.
func (m *Manager) Get(ctx context.Context) (*Handle, error) {
	for {
		m.mu.Lock()
		if m.handle != nil {
			h := m.handle
			m.mu.Unlock()
			return h, nil
		}
		gen := m.gen
		m.mu.Unlock()

		res, err, _ := m.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
			return m.openGeneration(ctx, gen)
		})
		if err != nil {
			return nil, err
		}
		if h := res.(*Handle); h != nil {
			return h, nil
		}
		// Invalidated while opening; try again under the new generation.
	}
}

// openGeneration opens a handle and installs it if gen is still current.
// It returns a nil handle when an Invalidate won the race.
func (m *Manager) openGeneration(ctx context.Context, gen uint64) (*Handle, error) {
	m.mu.Lock()
	if m.handle != nil && m.handle.Generation == gen {
		h := m.handle
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	// The open is shared by every waiter, so one caller going away must not
	// cancel it for the others.
	db, adapter, err := m.open(context.WithoutCancel(ctx))
	if err != nil {
		m.metrics.ConnectionFailed()
		m.log.Error().Err(err).Uint64("generation", gen).Msg("database connection failed")
		return nil, err
	}

	h := &Handle{
		ID:         uuid.NewString(),
		Generation: gen,
		DB:         db,
		Adapter:    adapter,
		OpenedAt:   time.Now(),
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.Debug().Uint64("generation", gen).Msg("discarding handle opened across an invalidation")
		closeAsync(db, m.log)
		return nil, nil
	}
	m.handle = h
	m.mu.Unlock()

	m.metrics.ConnectionOpened()
	m.log.Info().
		Str("handle", h.ID).
		Uint64("generation", gen).
		Str("adapter", adapter.Name()).
		Msg("database connection opened")
	return h, nil
}

// Invalidate starts a new generation and drops the cached handle. The old
// pool is closed in the background; database/sql lets queries already running
// on it finish first.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	old := m.handle
	m.handle = nil
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.metrics.Invalidated()
	m.log.Info().Uint64("generation", gen).Msg("connection cache invalidated")
	if old != nil {
		closeAsync(old.DB, m.log)
	}
}

// Generation returns the current generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Current returns the cached handle without opening one.
func (m *Manager) Current() (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle, m.handle != nil
}

// Close closes the cached handle, if any, and invalidates the cache.
func (m *Manager) Close() error {
	m.mu.Lock()
	old := m.handle
	m.handle = nil
	m.gen++
	m.mu.Unlock()

	if old != nil && old.DB != nil {
		return old.DB.Close()
	}
	return nil
}

func closeAsync(db *sql.DB, log zerolog.Logger) {
	if db == nil {
		return
	}
	go func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing invalidated database handle")
		}
	}()
}

// NewOpener returns an OpenFunc that resolves the configured driver through
// registry, opens the pool and pings it within the connect timeout.
func NewOpener(cfg config.DatabaseConfig, registry *adapters.Registry) OpenFunc {
	return func(ctx context.Context) (*sql.DB, adapters.Adapter, error) {
		driver := cfg.DriverOrDefault()

		adapter, err := registry.Resolve(driver)
		if err != nil {
			return nil, nil, errors.NewConnection(driver, cfg.Server, err)
		}

		dsn, err := adapter.DSN(cfg)
		if err != nil {
			return nil, nil, errors.NewConnection(driver, cfg.Server, err)
		}

		db, err := sql.Open(adapter.DriverName(), dsn)
		if err != nil {
			return nil, nil, errors.NewConnection(driver, cfg.Server, fmt.Errorf("open: %w", err))
		}

		if strings.Contains(dsn, ":memory:") {
			// Every pooled connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}

		timeout := cfg.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, errors.NewConnection(driver, cfg.Server, fmt.Errorf("ping: %w", err))
		}

		return db, adapter, nil
	}
}
