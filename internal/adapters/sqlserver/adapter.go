// Package sqlserver provides the Microsoft SQL Server dialect adapter.
// It is the default: DB_DRIVER values naming an ODBC SQL Server driver
// resolve here and are served by go-mssqldb.
package sqlserver

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
)

// Adapter implements adapters.Adapter for SQL Server.
type Adapter struct{}

// NewAdapter creates a new SQL Server adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return "sqlserver"
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "sqlserver"
}

// Matches accepts ODBC driver names ("ODBC Driver 17 for SQL Server",
// "SQL Server Native Client 11.0") and the Go driver names.
func (a *Adapter) Matches(driver string) bool {
	d := strings.ToLower(strings.TrimSpace(driver))
	return d == "mssql" || d == "sqlserver" || adapters.ContainsFold(d, "sql server")
}

// FileBased returns false.
func (a *Adapter) FileBased() bool {
	return false
}

// DSN builds a sqlserver:// URL. DB_SERVER may use the ODBC forms
// "host,port" and "host\instance".
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	if err := adapters.CheckRequired(a, cfg); err != nil {
		return "", err
	}

	host, instance := splitServer(cfg.Server)

	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.ConnectTimeout > 0 {
		query.Set("connection timeout", fmt.Sprintf("%d", int(cfg.ConnectTimeout.Seconds())))
	}
	query.Set("app name", "pace")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     host,
		RawQuery: query.Encode(),
	}
	if instance != "" {
		u.Path = instance
	}
	return u.String(), nil
}

// TablesQuery lists base tables in the login's default schema.
func (a *Adapter) TablesQuery() string {
	return `SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
  AND TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`
}

// SelectTop uses TOP n with a bracket-delimited table name.
func (a *Adapter) SelectTop(table string, limit int) string {
	return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, a.QuoteIdent(table))
}

// QuoteIdent delimits name with brackets.
func (a *Adapter) QuoteIdent(name string) string {
	return adapters.QuoteBracket(name)
}

func splitServer(server string) (host, instance string) {
	server = strings.TrimPrefix(strings.TrimSpace(server), "tcp:")
	if i := strings.Index(server, `\`); i >= 0 {
		server, instance = server[:i], server[i+1:]
	}
	if h, p, ok := strings.Cut(server, ","); ok {
		return net.JoinHostPort(strings.TrimSpace(h), strings.TrimSpace(p)), instance
	}
	return server, instance
}
