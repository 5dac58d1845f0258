// Package postgres provides the PostgreSQL dialect adapter.
package postgres

import (
	"fmt"
	"net"
	"net/url"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Adapter implements adapters.Adapter for PostgreSQL.
type Adapter struct {
	name        string
	defaultPort string
}

// NewAdapter creates a new PostgreSQL adapter.
func NewAdapter() *Adapter {
	return &Adapter{name: "postgres", defaultPort: "5432"}
}

// NewRedshiftAdapter creates an adapter for Amazon Redshift, which speaks the
// PostgreSQL wire protocol on port 5439 by default.
func NewRedshiftAdapter() *Adapter {
	return &Adapter{name: "redshift", defaultPort: "5439"}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "postgres"
}

// Matches accepts "postgres", "postgresql" and ODBC names such as
// "PostgreSQL Unicode"; the redshift variant accepts names mentioning Redshift.
func (a *Adapter) Matches(driver string) bool {
	if a.name == "redshift" {
		return adapters.ContainsFold(driver, "redshift")
	}
	return adapters.ContainsFold(driver, "postgres")
}

// FileBased returns false.
func (a *Adapter) FileBased() bool {
	return false
}

// DSN builds a postgres:// URL.
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	if err := adapters.CheckRequired(a, cfg); err != nil {
		return "", err
	}

	host := cfg.Server
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, a.defaultPort)
	}

	query := url.Values{}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	query.Set("sslmode", sslmode)
	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", fmt.Sprintf("%d", int(cfg.ConnectTimeout.Seconds())))
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     host,
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// TablesQuery lists base tables in the current schema, the one unqualified
// names in SelectTop resolve against.
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
