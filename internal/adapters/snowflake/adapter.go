// Package snowflake provides the Snowflake dialect adapter.
//
// DB_SERVER is the account identifier and DB_DATABASE is "database" or
// "database.schema".
package snowflake

import (
	"strings"

	"github.com/snowflakedb/gosnowflake"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/config"
)

// Adapter implements adapters.Adapter for Snowflake.
type Adapter struct{}

// NewAdapter creates a new Snowflake adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return "snowflake"
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return "snowflake"
}

// Matches accepts "snowflake" and the ODBC "SnowflakeDSIIDriver".
func (a *Adapter) Matches(driver string) bool {
	return adapters.ContainsFold(driver, "snowflake")
}

// FileBased returns false.
func (a *Adapter) FileBased() bool {
	return false
}

// DSN formats the connection string with gosnowflake's formatter.
func (a *Adapter) DSN(cfg config.DatabaseConfig) (string, error) {
	if err := adapters.CheckRequired(a, cfg); err != nil {
		return "", err
	}

	database, schema, _ := strings.Cut(cfg.Database, ".")
	sc := &gosnowflake.Config{
		Account:      strings.TrimSuffix(cfg.Server, ".snowflakecomputing.com"),
		User:         cfg.Username,
		Password:     cfg.Password,
		Database:     database,
		Schema:       schema,
		Application:  "pace",
		LoginTimeout: cfg.ConnectTimeout,
	}
	return gosnowflake.DSN(sc)
}

// TablesQuery lists base tables in the current schema.
func (a *Adapter) TablesQuery() string {
	return `SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
  AND TABLE_SCHEMA = CURRENT_SCHEMA()
ORDER BY TABLE_NAME`
}

// SelectTop uses LIMIT n.
func (a *Adapter) SelectTop(table string, limit int) string {
	return adapters.SelectLimit(a.QuoteIdent(table), limit)
}

// QuoteIdent delimits name with double quotes.
func (a *Adapter) QuoteIdent(name string) string {
	return adapters.QuoteDouble(name)
}
