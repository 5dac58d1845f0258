// Package catalog lists the base tables of the connected database.
//
// The listing is memoized per connection handle, so it is computed once per
// handle and recomputed only after the cache is cleared or the handle changes.
// The names it returns are the allow-list every row fetch is checked against.
package catalog

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/cache"
	"github.com/canonica-labs/pace/internal/connection"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/observability"
)

// Result is the outcome of a table listing. A failed listing carries Err and
// no names, so callers can tell "no tables" from "could not list".
type Result struct {
	Names []string
	Err   error
}

// Failed reports whether the listing could not be produced.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Empty reports whether the listing succeeded and found no tables.
func (r Result) Empty() bool {
	return r.Err == nil && len(r.Names) == 0
}

// Contains reports whether name is one of the listed tables. Matching is exact.
func (r Result) Contains(name string) bool {
	return slices.Contains(r.Names, name)
}

// loadTimeout bounds a shared listing query.
const loadTimeout = time.Minute

// Lister lists and memoizes base table names.
type Lister struct {
	memo    *cache.Memo[string, []string]
	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewLister creates a Lister remembering listings for up to size handles.
func NewLister(size int, log zerolog.Logger, metrics *observability.Metrics) (*Lister, error) {
	memo, err := cache.New[string, []string]("tables", size, metrics)
	if err != nil {
		return nil, err
	}
	return &Lister{
		memo:    memo,
		log:     observability.Component(log, "catalog"),
		metrics: metrics,
	}, nil
}

// List returns the sorted base table names visible through h. A nil handle
// yields an empty result. Failures are logged, reported in the result and
// not memoized.
func (l *Lister) List(ctx context.Context, h *connection.Handle) Result {
	if h == nil {
		return Result{}
	}

	names, hit, err := l.memo.GetOrLoad(h.ID, func() ([]string, error) {
		// Waiters share this load, so it must not end with the first caller.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return l.load(loadCtx, h)
	})
	if err != nil {
		l.log.Error().Err(err).Str("handle", h.ID).Msg("listing tables failed")
		return Result{Err: err}
	}

	l.log.Debug().Str("handle", h.ID).Bool("cached", hit).Int("tables", len(names)).Msg("tables listed")
	return Result{Names: slices.Clone(names)}
}

// Clear drops every memoized listing.
func (l *Lister) Clear() {
	l.memo.Clear()
}

func (l *Lister) load(ctx context.Context, h *connection.Handle) (names []string, err error) {
	start := time.Now()
	defer func() {
		l.metrics.ObserveQuery(observability.ActionListTables, time.Since(start), err)
	}()

	rows, err := h.DB.QueryContext(ctx, h.Adapter.TablesQuery())
	if err != nil {
		return nil, errors.NewQuery(observability.ActionListTables, "", err)
	}
	defer rows.Close()

	names = make([]string, 0)
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewQuery(observability.ActionListTables, "", err)
		}
		if name.Valid {
			names = append(names, name.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQuery(observability.ActionListTables, "", err)
	}

	slices.Sort(names)
	return names, nil
}
