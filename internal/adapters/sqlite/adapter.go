// Package sqlite provides the SQLite dialect adapter, backed by the pure-Go
// modernc.org/sqlite driver. DB_DATABASE is the database file path.
package sqlite

import (
	"strings"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"

	_ "modernc.org/sqlite" // SQLite driver
)

// Adapter implements adapters.Adapter for SQLite.
type Adapter struct{}

// NewAdapter creates a new SQLite adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return "sqlite"
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "sqlite"
}

// Matches accepts "sqlite" and "sqlite3", including ODBC names like "SQLite3 ODBC Driver".
func (a *Adapter) Matches(driver string) bool {
	return adapters.ContainsFold(driver, "sqlite")
}

// FileBased returns true.
func (a *Adapter) FileBased() bool {
	return true
}

// DSN returns the database path. A read-only mode is requested for plain paths.
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	if err := adapters.CheckRequired(a, cfg); err != nil {
		return "", err
	}
	if cfg.Database == ":memory:" || strings.HasPrefix(cfg.Database, "file:") {
		return cfg.Database, nil
	}
	return "file:" + cfg.Database + "?mode=ro", nil
}

// TablesQuery lists user tables from sqlite_master.
func (a *Adapter) TablesQuery() string {
	return `SELECT name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`
}

// SelectTop uses LIMIT n.
func (a *Adapter) SelectTop(table string, limit int) string {
	return adapters.SelectLimit(a.QuoteIdent(table), limit)
}

// QuoteIdent delimits name with double quotes.
func (a *Adapter) QuoteIdent(name string) string {
	return adapters.QuoteDouble(name)
}
