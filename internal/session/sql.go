package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/storage"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLStore keeps sessions in a sessions table on PostgreSQL or SQLite.
type SQLStore struct {
	db   *sql.DB
	repo *storage.SessionRepository
	log  zerolog.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// OpenSQLStore opens the configured database, applies migrations and starts
// a sweeper that purges expired sessions every interval.
func OpenSQLStore(ctx context.Context, cfg config.SQLConfig, interval time.Duration, log zerolog.Logger) (*SQLStore, error) {
	dialect, err := storage.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if dialect == storage.DialectSQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}

	store, err := NewSQLStore(ctx, db, dialect, interval, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore migrates db and wraps it. The store owns db and closes it.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect storage.Dialect, interval time.Duration, log zerolog.Logger) (*SQLStore, error) {
	repo := storage.NewSessionRepository(db, dialect)
	if err := repo.CheckConnectivity(ctx); err != nil {
		return nil, err
	}
	if err := storage.NewMigrationRunner(db, dialect).Run(ctx); err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &SQLStore{
		db:   db,
		repo: repo,
		log:  log.With().Str("component", "session").Str("backend", "sql").Logger(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s, nil
}

// Load reads and decodes the session.
func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	rec, err := s.repo.Get(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(rec.Data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Save encodes and upserts the session.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.repo.Upsert(ctx, &storage.SessionRecord{
		ID:        sess.ID,
		Data:      data,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Delete removes the session.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Ping checks the session database.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.repo.CheckConnectivity(ctx)
}

// Close stops the sweeper and closes the database.
func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return s.db.Close()
}

func (s *SQLStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := s.repo.DeleteExpired(ctx, time.Now())
			cancel()
			if err != nil {
				s.log.Warn().Err(err).Msg("purging expired sessions failed")
			} else if n > 0 {
				s.log.Debug().Int64("sessions", n).Msg("purged expired sessions")
			}
		}
	}
}
