// Package storage persists sessions in a SQL database.
//
// The same schema and statements run on PostgreSQL (lib/pq) and SQLite
// (modernc.org/sqlite); only placeholder syntax differs, and Dialect.Rebind
// takes care of it.
package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/canonica-labs/pace/internal/errors"
)

// Dialect identifies the SQL flavour of the session database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a database/sql driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported session database driver %q (want postgres or sqlite)", driver)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders into $n for PostgreSQL.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SessionRecord is one stored session.
type SessionRecord struct {
	ID        string
	Data      []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository reads and writes the sessions table.
// Timestamps are stored as Unix seconds so comparisons behave the same on
// every dialect.
type SessionRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSessionRepository creates a repository over db.
func NewSessionRepository(db *sql.DB, dialect Dialect) *SessionRepository {
	return &SessionRepository{db: db, dialect: dialect}
}

// Get returns the record with id, or errors.ErrSessionNotFound if it is
// missing or expired at now.
func (r *SessionRepository) Get(ctx context.Context, id string, now time.Time) (*SessionRecord, error) {
	var (
		rec       SessionRecord
		createdAt int64
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT id, data, created_at, expires_at FROM sessions WHERE id = ? AND expires_at > ?`),
		id, now.Unix(),
	).Scan(&rec.ID, &rec.Data, &createdAt, &expiresAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return &rec, nil
}

// Upsert inserts the record or replaces its data and expiry.
func (r *SessionRepository) Upsert(ctx context.Context, rec *SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO sessions (id, data, created_at, expires_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`),
		rec.ID, string(rec.Data), rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the record. A missing record is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every record expired at now and reports how many.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CheckConnectivity verifies the session database is reachable.
func (r *SessionRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("session database unreachable: %w", err)
	}
	return nil
}
