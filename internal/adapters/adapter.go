// Package adapters defines the common interface for database dialect adapters.
// Each adapter knows how to reach one engine through database/sql and how to
// phrase the two statements pace issues: the base-table listing and the
// row-limited select.
//
// Adapters are stateless and thin. They never execute anything themselves.
package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/errors"
)

// Adapter is the interface all dialect adapters must implement.
type Adapter interface {
	// Name returns the unique name of this adapter.
	Name() string

	// DriverName is the database/sql driver the adapter opens.
	DriverName() string

	// Matches reports whether a DB_DRIVER value selects this adapter.
	Matches(driver string) bool

	// FileBased reports whether the engine reads a local file, in which case
	// only the database path is required.
	FileBased() bool

	// DSN builds the driver connection string from the credential source.
	DSN(cfg config.DatabaseConfig) (string, error)

	// TablesQuery returns the statement listing base table names (views excluded).
	// The statement yields exactly one column.
	TablesQuery() string

	// SelectTop returns a statement reading at most limit rows from table.
	SelectTop(table string, limit int) string

	// QuoteIdent delimits an identifier for this dialect.
	QuoteIdent(name string) string
}

// Registry manages dialect adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a new adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Name()] = adapter
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Resolve returns the adapter selected by a DB_DRIVER value.
// Adapter names match exactly before any alias is consulted.
func (r *Registry) Resolve(driver string) (Adapter, error) {
	key := strings.TrimSpace(driver)
	if adapter, ok := r.adapters[strings.ToLower(key)]; ok {
		return adapter, nil
	}
	for _, name := range r.Available() {
		if adapter := r.adapters[name]; adapter.Matches(key) {
			return adapter, nil
		}
	}
	return nil, errors.NewUnknownDriver(driver, r.Available())
}

// Available returns the names of all registered adapters, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty returns true if no adapters are registered.
func (r *Registry) IsEmpty() bool {
	return len(r.adapters) == 0
}

// CheckRequired returns an ErrConfig when cfg lacks what adapter needs.
func CheckRequired(adapter Adapter, cfg config.DatabaseConfig) error {
	if missing := cfg.Missing(adapter.FileBased()); len(missing) > 0 {
		return errors.NewMissingConfig(missing)
	}
	return nil
}

// QuoteBracket delimits name with square brackets, doubling any closing bracket.
func QuoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteDouble delimits name with double quotes, doubling any embedded quote.
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SelectLimit builds the LIMIT form of a row-limited select.
func SelectLimit(quotedTable string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, limit)
}

// ContainsFold reports whether s contains substr, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
