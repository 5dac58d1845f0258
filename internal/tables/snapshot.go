// Package tables reads capped row snapshots from named tables.
package tables

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/cache"
	"github.com/canonica-labs/pace/internal/connection"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/observability"
)

// Snapshot is the result of one row-limited read.
type Snapshot struct {
	// Table is the table the rows came from.
	Table string `json:"table"`

	// Columns are the column names in select order.
	Columns []string `json:"columns"`

	// Rows hold one value per column. Byte slices are returned as strings.
	Rows [][]any `json:"rows"`

	// Limit is the cap the read was issued with.
	Limit int `json:"limit"`

	// FetchedAt is when the rows were read.
	FetchedAt time.Time `json:"fetched_at"`
}

// RowCount returns the number of rows.
func (s *Snapshot) RowCount() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ColumnCount returns the number of columns.
func (s *Snapshot) ColumnCount() int {
	if s == nil {
		return 0
	}
	return len(s.Columns)
}

// IsEmpty reports whether the snapshot has no rows.
func (s *Snapshot) IsEmpty() bool {
	return s.RowCount() == 0
}

// loadTimeout bounds a shared row query. The load outlives the request that
// started it because concurrent callers wait on the same result.
const loadTimeout = time.Minute

type snapshotKey struct {
	handle string
	table  string
	limit  int
}

// Fetcher reads snapshots, memoized per (handle, table, limit).
// Every distinct limit is its own entry; a smaller limit never trims a
// larger cached snapshot.
type Fetcher struct {
	memo    *cache.Memo[snapshotKey, *Snapshot]
	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher holding at most size snapshots.
func NewFetcher(size int, log zerolog.Logger, metrics *observability.Metrics) (*Fetcher, error) {
	memo, err := cache.New[snapshotKey, *Snapshot]("rows", size, metrics)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		memo:    memo,
		log:     observability.Component(log, "tables"),
		metrics: metrics,
	}, nil
}

// Fetch returns up to limit rows of table. table is delimited but otherwise
// trusted; callers must check it against the table listing first. On failure
// Fetch returns an empty snapshot together with the error, and nothing is
// memoized.
func (f *Fetcher) Fetch(ctx context.Context, h *connection.Handle, table string, limit int) (*Snapshot, error) {
	empty := &Snapshot{Table: table, Columns: []string{}, Rows: [][]any{}, Limit: limit}
	if h == nil {
		return empty, errors.NewQuery(observability.ActionFetchRows, table, errNoHandle)
	}

	key := snapshotKey{handle: h.ID, table: table, limit: limit}
	snap, hit, err := f.memo.GetOrLoad(key, func() (*Snapshot, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return f.load(loadCtx, h, table, limit)
	})
	if err != nil {
		f.log.Error().Err(err).Str("table", table).Int("limit", limit).Msg("fetching rows failed")
		return empty, err
	}

	f.log.Debug().
		Str("table", table).
		Int("limit", limit).
		Int("rows", snap.RowCount()).
		Bool("cached", hit).
		Msg("rows fetched")
	return snap, nil
}

// Clear drops every memoized snapshot.
func (f *Fetcher) Clear() {
	f.memo.Clear()
}

func (f *Fetcher) load(ctx context.Context, h *connection.Handle, table string, limit int) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		f.metrics.ObserveQuery(observability.ActionFetchRows, time.Since(start), err)
	}()

	rows, err := h.DB.QueryContext(ctx, h.Adapter.SelectTop(table, limit))
	if err != nil {
		return nil, errors.NewQuery(observability.ActionFetchRows, table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.NewQuery(observability.ActionFetchRows, table, err)
	}

	data := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.NewQuery(observability.ActionFetchRows, table, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQuery(observability.ActionFetchRows, table, err)
	}

	return &Snapshot{
		Table:     table,
		Columns:   columns,
		Rows:      data,
		Limit:     limit,
		FetchedAt: time.Now(),
	}, nil
}
