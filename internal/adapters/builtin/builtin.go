// Package builtin assembles the adapter registry with every dialect pace ships.
package builtin

import (
	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/adapters/duckdb"
	"github.com/canonica-labs/pace/internal/adapters/postgres"
	"github.com/canonica-labs/pace/internal/adapters/snowflake"
	"github.com/canonica-labs/pace/internal/adapters/sqlite"
	"github.com/canonica-labs/pace/internal/adapters/sqlserver"
	"github.com/canonica-labs/pace/internal/adapters/trino"
)

// NewRegistry returns a registry holding all built-in adapters.
func NewRegistry() *adapters.Registry {
	r := adapters.NewRegistry()
	r.Register(sqlserver.NewAdapter())
	r.Register(postgres.NewAdapter())
	r.Register(postgres.NewRedshiftAdapter())
	r.Register(sqlite.NewAdapter())
	r.Register(duckdb.NewAdapter())
	r.Register(trino.NewAdapter())
	r.Register(snowflake.NewAdapter())
	return r
}
