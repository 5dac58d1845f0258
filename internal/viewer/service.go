// Package viewer composes the connection manager, the table lister and the
// row fetcher into the operations the UI and CLI need.
package viewer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/auth"
	"github.com/canonica-labs/pace/internal/catalog"
	"github.com/canonica-labs/pace/internal/connection"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/tables"
)

// Default cache sizes.
const (
	DefaultListings  = 8
	DefaultSnapshots = 64
)

// Service reads table names and row snapshots through one shared connection.
type Service struct {
	conns   *connection.Manager
	lister  *catalog.Lister
	fetcher *tables.Fetcher

	log     zerolog.Logger
	metrics *observability.Metrics
	audit   observability.AccessLogger
}

// Options configures a Service.
type Options struct {
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Audit     observability.AccessLogger
	Listings  int
	Snapshots int
}

// New creates a Service over conns.
func New(conns *connection.Manager, opts Options) (*Service, error) {
	if opts.Listings <= 0 {
		opts.Listings = DefaultListings
	}
	if opts.Snapshots <= 0 {
		opts.Snapshots = DefaultSnapshots
	}
	if opts.Audit == nil {
		opts.Audit = observability.NoopAccessLogger{}
	}

	lister, err := catalog.NewLister(opts.Listings, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}
	fetcher, err := tables.NewFetcher(opts.Snapshots, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}

	return &Service{
		conns:   conns,
		lister:  lister,
		fetcher: fetcher,
		log:     observability.Component(opts.Logger, "viewer"),
		metrics: opts.Metrics,
		audit:   opts.Audit,
	}, nil
}

// Connect returns the shared connection handle.
func (s *Service) Connect(ctx context.Context) (*connection.Handle, error) {
	return s.conns.Get(ctx)
}

// ListTables returns the base tables of the connected database. The error is
// non-nil only when no connection could be made; a failed listing is reported
// in the result.
func (s *Service) ListTables(ctx context.Context) (catalog.Result, error) {
	start := time.Now()

	h, err := s.conns.Get(ctx)
	if err != nil {
		s.record(ctx, observability.AccessLogEntry{Action: observability.ActionListTables}, start, err)
		return catalog.Result{}, err
	}

	res := s.lister.List(ctx, h)
	s.record(ctx, observability.AccessLogEntry{
		Action: observability.ActionListTables,
		Rows:   len(res.Names),
	}, start, res.Err)
	return res, nil
}

// FetchRows returns up to limit rows of table. The table must be one of the
// names ListTables reports for the current connection; anything else is
// refused before a statement is built. On any failure the snapshot is empty.
func (s *Service) FetchRows(ctx context.Context, table string, limit int) (*tables.Snapshot, error) {
	start := time.Now()
	entry := observability.AccessLogEntry{
		Action:   observability.ActionFetchRows,
		Table:    table,
		RowLimit: limit,
	}
	empty := &tables.Snapshot{Table: table, Columns: []string{}, Rows: [][]any{}, Limit: limit}

	if limit < 1 {
		err := errors.NewInvalidRowLimit(limit)
		s.record(ctx, entry, start, err)
		return empty, err
	}

	h, err := s.conns.Get(ctx)
	if err != nil {
		s.record(ctx, entry, start, err)
		return empty, err
	}

	listing := s.lister.List(ctx, h)
	if listing.Failed() {
		s.record(ctx, entry, start, listing.Err)
		return empty, listing.Err
	}
	if !listing.Contains(table) {
		err := errors.NewTableNotAllowed(table)
		entry.Outcome = observability.OutcomeRejected
		s.record(ctx, entry, start, err)
		return empty, err
	}

	snap, err := s.fetcher.Fetch(ctx, h, table, limit)
	entry.Rows = snap.RowCount()
	s.record(ctx, entry, start, err)
	return snap, err
}

// Reset drops the connection and every memoized listing and snapshot. Any
// caller still holding the old handle keeps it until its query returns.
func (s *Service) Reset() {
	s.conns.Invalidate()
	s.lister.Clear()
	s.fetcher.Clear()
	s.log.Info().Uint64("generation", s.conns.Generation()).Msg("viewer caches reset")
}

// Ping checks the database is reachable through the shared handle and
// returns that handle.
func (s *Service) Ping(ctx context.Context) (*connection.Handle, error) {
	h, err := s.conns.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.DB.PingContext(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Generation returns the connection cache generation.
func (s *Service) Generation() uint64 {
	return s.conns.Generation()
}

// Close releases the shared connection.
func (s *Service) Close() error {
	return s.conns.Close()
}

func (s *Service) record(ctx context.Context, entry observability.AccessLogEntry, start time.Time, cause error) {
	entry.RequestID = observability.RequestIDFromContext(ctx)
	entry.User = auth.UsernameFromContext(ctx)
	entry.Duration = time.Since(start)
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := s.audit.LogAccess(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", entry.Action).Msg("failed to write access event")
	}
}
