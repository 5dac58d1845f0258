// Package duckdb provides the DuckDB dialect adapter.
// DuckDB is used for local development and for viewing exported data files.
package duckdb

import (
	"strings"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

// Adapter implements adapters.Adapter for DuckDB.
type Adapter struct{}

// NewAdapter creates a new DuckDB adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return "duckdb"
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "duckdb"
}

// Matches accepts any driver name mentioning DuckDB.
func (a *Adapter) Matches(driver string) bool {
	return adapters.ContainsFold(driver, "duckdb")
}

// FileBased returns true.
func (a *Adapter) FileBased() bool {
	return true
}

// DSN returns the database path, opened read-only unless in-memory.
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	if err := adapters.CheckRequired(a, cfg); err != nil {
		return "", err
	}
	if cfg.Database == ":memory:" || strings.Contains(cfg.Database, "?") {
		return cfg.Database, nil
	}
	return cfg.Database + "?access_mode=read_only", nil
}

// TablesQuery lists base tables in the current schema.
func (a *Adapter) TablesQuery() string {
	return `SELECT table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema = current_schema()
ORDER BY table_name`
}

// SelectTop uses LIMIT n.
func (a *Adapter) SelectTop(table string, limit int) string {
	return adapters.SelectLimit(a.QuoteIdent(table), limit)
}

// QuoteIdent delimits name with double quotes.
func (a *Adapter) QuoteIdent(name string) string {
	return adapters.QuoteDouble(name)
}
