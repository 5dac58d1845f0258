// Package connectiontest provides in-memory SQLite databases for tests that
// need a connection.Manager.
package connectiontest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/adapters/sqlite"
)

// OrdersSchema is a five-row Orders table plus a view that must never be listed.
var OrdersSchema = []string{
	`CREATE TABLE Orders (id INTEGER PRIMARY KEY, customer TEXT, amount REAL, shipped_at TEXT)`,
	`INSERT INTO Orders VALUES
		(1, 'Acme', 120.50, '2024-01-03'),
		(2, 'Globex', 89.99, '2024-01-04'),
		(3, 'Initech', 240.00, NULL),
		(4, 'Umbrella', 15.25, '2024-01-09'),
		(5, 'Acme', 310.75, '2024-01-11')`,
	`CREATE VIEW OrderTotals AS SELECT customer, SUM(amount) AS total FROM Orders GROUP BY customer`,
}

// UnorderedSchema creates Zeta, Alpha and Mid in that order.
var UnorderedSchema = []string{
	`CREATE TABLE Zeta (id INTEGER)`,
	`CREATE TABLE Alpha (id INTEGER)`,
	`CREATE TABLE Mid (id INTEGER)`,
}

// SeriesSchema returns a single-column table named name holding n rows.
func SeriesSchema(name string, n int) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %q (n INTEGER)`, name),
		fmt.Sprintf(`WITH RECURSIVE s(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM s WHERE n < %d)
			INSERT INTO %q SELECT n FROM s`, n, name),
	}
}

// Fixture opens a fresh in-memory SQLite database per call to Open.
type Fixture struct {
	schema []string
	opens  atomic.Int32

	mu   sync.Mutex
	err  error
	hold chan struct{}
}

// NewFixture creates a fixture whose databases run schema on open.
func NewFixture(schema ...[]string) *Fixture {
	f := &Fixture{}
	for _, stmts := range schema {
		f.schema = append(f.schema, stmts...)
	}
	return f
}

// FailWith makes subsequent opens fail with err. A nil err clears it.
func (f *Fixture) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Hold makes subsequent opens block until the returned function is called.
func (f *Fixture) Hold() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.hold == ch {
				f.hold = nil
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Opens returns how many times Open has been called.
func (f *Fixture) Opens() int {
	return int(f.opens.Load())
}

// Open satisfies connection.OpenFunc.
func (f *Fixture) Open(ctx context.Context) (*sql.DB, adapters.Adapter, error) {
	f.opens.Add(1)

	f.mu.Lock()
	err, hold := f.err, f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range f.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("fixture schema: %w", err)
		}
	}
	return db, sqlite.NewAdapter(), nil
}
