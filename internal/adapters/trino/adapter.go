// Package trino provides the Trino dialect adapter.
//
// DB_SERVER is the coordinator "host:port" and DB_DATABASE is "catalog" or
// "catalog.schema". A password switches the connection to HTTPS, which the
// Trino client requires for basic authentication.
package trino

import (
	"net"
	"net/url"
	"strings"

	"github.com/trinodb/trino-go-client/trino"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"
)

// Adapter implements adapters.Adapter for Trino.
type Adapter struct{}

// NewAdapter creates a new Trino adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return "trino"
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "trino"
}

// Matches accepts names mentioning Trino (or its former name, Presto).
func (a *Adapter) Matches(driver string) bool {
	return adapters.ContainsFold(driver, "trino") || adapters.ContainsFold(driver, "presto")
}

// FileBased returns false.
func (a *Adapter) FileBased() bool {
	return false
}

// DSN formats the connection string with the client's own formatter.
// Username is required; a password is optional on plain HTTP deployments.
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	check := cfg
	if check.Password == "" {
		check.Password = "-"
	}
	if err := adapters.CheckRequired(a, check); err != nil {
		return "", err
	}

	host := cfg.Server
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "8080")
	}

	server := &url.URL{Scheme: "http", User: url.User(cfg.Username), Host: host}
	if cfg.Password != "" {
		server.Scheme = "https"
		server.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	catalog, schema, _ := strings.Cut(cfg.Database, ".")
	tc := &trino.Config{
		ServerURI: server.String(),
		Source:    "pace",
		Catalog:   catalog,
		Schema:    schema,
	}
	return tc.FormatDSN()
}

// TablesQuery lists base tables in the session schema.
func (a *Adapter) TablesQuery() string {
	return `SELECT table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema = current_schema
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
