// Package status reports readiness and a summary of recent access activity.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/canonica-labs/pace/internal/observability"
)

// Check probes one component. A nil error means ready; message describes
// the component either way.
type Check func(ctx context.Context) (message string, err error)

// ComponentStatus represents the status of a component.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Result is the outcome of a readiness check.
type Result struct {
	Ready      bool                       `json:"ready"`
	Reason     string                     `json:"reason,omitempty"`
	Components map[string]ComponentStatus `json:"components"`
	Generation uint64                     `json:"generation"`
	Version    string                     `json:"version"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Checker runs named component checks.
type Checker struct {
	names      []string
	checks     map[string]Check
	version    string
	generation func() uint64
	timeout    time.Duration
}

// NewChecker creates a checker reporting version.
func NewChecker(version string, generation func() uint64) *Checker {
	return &Checker{
		checks:     make(map[string]Check),
		version:    version,
		generation: generation,
		timeout:    5 * time.Second,
	}
}

// Add registers a component check. Components are checked in the order added.
func (c *Checker) Add(name string, check Check) *Checker {
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
	return c
}

// Check runs every component check. The result is ready only if all are.
// The reason names the first component that failed.
func (c *Checker) Check(ctx context.Context) *Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := &Result{
		Ready:      true,
		Components: make(map[string]ComponentStatus, len(c.names)),
		Version:    c.version,
		CheckedAt:  time.Now(),
	}
	if c.generation != nil {
		result.Generation = c.generation()
	}

	for _, name := range c.names {
		message, err := c.checks[name](ctx)
		status := ComponentStatus{Ready: err == nil, Message: message}
		if err != nil {
			status.Message = firstLine(err.Error())
			result.Ready = false
			if result.Reason == "" {
				result.Reason = fmt.Sprintf("%s not ready: %s", name, status.Message)
			}
		}
		result.Components[name] = status
	}

	return result
}

// Names returns the component names in check order.
func (c *Checker) Names() []string {
	return append([]string(nil), c.names...)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// AccessSummary aggregates recent access events. It never carries row data.
type AccessSummary struct {
	Logins         int         `json:"logins"`
	RejectedLogins int         `json:"rejected_logins"`
	Logouts        int         `json:"logouts"`
	Fetches        int         `json:"fetches"`
	Errors         int         `json:"errors"`
	TopTables      []TableStat `json:"top_tables"`
}

// TableStat counts fetches of one table.
type TableStat struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// String returns a short human-readable summary.
func (s *AccessSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Logins: %d (%d rejected)\n", s.Logins, s.RejectedLogins)
	fmt.Fprintf(&sb, "Logouts: %d\n", s.Logouts)
	fmt.Fprintf(&sb, "Fetches: %d\n", s.Fetches)
	fmt.Fprintf(&sb, "Errors: %d\n", s.Errors)
	if len(s.TopTables) > 0 {
		sb.WriteString("Top Tables:\n")
		for _, t := range s.TopTables {
			fmt.Fprintf(&sb, "  - %s: %d\n", t.Table, t.Count)
		}
	}
	return sb.String()
}

// AccessStats counts access events in memory. It implements
// observability.AccessLogger so it can sit next to the audit log.
type AccessStats struct {
	mu       sync.RWMutex
	summary  AccessSummary
	tables   map[string]int
	topLimit int
}

// NewAccessStats creates an empty AccessStats keeping the top n tables.
func NewAccessStats(n int) *AccessStats {
	if n <= 0 {
		n = 5
	}
	return &AccessStats{tables: make(map[string]int), topLimit: n}
}

// LogAccess counts the event.
func (a *AccessStats) LogAccess(_ context.Context, entry observability.AccessLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Error != "" && entry.Outcome != observability.OutcomeRejected {
		a.summary.Errors++
	}

	switch entry.Action {
	case observability.ActionLogin:
		if entry.Outcome == observability.OutcomeRejected {
			a.summary.RejectedLogins++
		} else {
			a.summary.Logins++
		}
	case observability.ActionLogout:
		a.summary.Logouts++
	case observability.ActionFetchRows:
		a.summary.Fetches++
		if entry.Table != "" && entry.Error == "" {
			a.tables[entry.Table]++
		}
	}
	return nil
}

// Summary returns a snapshot of the counters.
func (a *AccessStats) Summary() *AccessSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summary := a.summary
	summary.TopTables = make([]TableStat, 0, len(a.tables))
	for table, count := range a.tables {
		summary.TopTables = append(summary.TopTables, TableStat{Table: table, Count: count})
	}
	sort.Slice(summary.TopTables, func(i, j int) bool {
		if summary.TopTables[i].Count != summary.TopTables[j].Count {
			return summary.TopTables[i].Count > summary.TopTables[j].Count
		}
		return summary.TopTables[i].Table < summary.TopTables[j].Table
	})
	if len(summary.TopTables) > a.topLimit {
		summary.TopTables = summary.TopTables[:a.topLimit]
	}
	return &summary
}
