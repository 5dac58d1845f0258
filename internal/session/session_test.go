package session

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/storage"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "pace:session:")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(context.Background(), db, storage.DialectSQLite, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStores_RoundTrip verifies every backend stores and returns the
// authentication values unchanged.
func TestStores_RoundTrip(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	stores := map[string]Store{
		"memory": newMemoryStore(t),
		"redis":  redisStore,
		"sql":    newSQLStore(t),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			sess := New(time.Hour)
			sess.Set(KeyAuthenticated, true)
			sess.Set(KeyUsername, "alice")

			// Act
			if err := store.Save(ctx, sess); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			got, err := store.Load(ctx, sess.ID)

			// Assert
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if !got.Bool(KeyAuthenticated) {
				t.Errorf("expected authenticated=true, got %v", got.Values[KeyAuthenticated])
			}
			if got.String(KeyUsername) != "alice" {
				t.Errorf("expected username alice, got %q", got.String(KeyUsername))
			}
			if got.IsNew() {
				t.Error("a loaded session must not be new")
			}

			if err := store.Delete(ctx, sess.ID); err != nil {
				t.Fatalf("delete failed: %v", err)
			}
			if _, err := store.Load(ctx, sess.ID); !errors.Is(err, errors.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
			}
		})
	}
}

// TestStores_Expired verifies expired sessions are not returned.
func TestStores_Expired(t *testing.T) {
	stores := map[string]Store{
		"memory": newMemoryStore(t),
		"sql":    newSQLStore(t),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := New(time.Hour)
			sess.ExpiresAt = time.Now().Add(-time.Minute)

			if err := store.Save(ctx, sess); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if _, err := store.Load(ctx, sess.ID); !errors.Is(err, errors.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	sess := New(time.Hour)

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if ttl := mr.TTL("pace:session:" + sess.ID); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected a TTL up to one hour, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after TTL, got %v", err)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	expired := New(time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Second)
	live := New(time.Hour)
	_ = store.Save(ctx, expired)
	_ = store.Save(ctx, live)

	store.sweep(time.Now())

	if store.Len() != 1 {
		t.Fatalf("expected 1 session after sweep, got %d", store.Len())
	}
}

// TestMemoryStore_IsolatesCopies verifies mutating a loaded session does not
// change the stored one until it is saved.
func TestMemoryStore_IsolatesCopies(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	sess := New(time.Hour)
	sess.Set(KeyUsername, "alice")
	_ = store.Save(ctx, sess)

	loaded, _ := store.Load(ctx, sess.ID)
	loaded.Delete(KeyUsername)

	again, _ := store.Load(ctx, sess.ID)
	if again.String(KeyUsername) != "alice" {
		t.Fatal("stored session changed without Save")
	}
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(newMemoryStore(t), config.SessionConfig{
		CookieName:   "pace_session",
		TTL:          time.Hour,
		SecureCookie: true,
	}, zerolog.Nop())
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "pace_session" {
			return c
		}
	}
	t.Fatal("expected a session cookie")
	return nil
}

// TestManager_StartSaveCycle verifies a saved session is found again by cookie.
func TestManager_StartSaveCycle(t *testing.T) {
	m := newManager(t)

	sess, err := m.Start(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.IsNew() {
		t.Fatal("expected a new session without a cookie")
	}

	sess.Set(KeyUsername, "alice")
	rec := httptest.NewRecorder()
	if err := m.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	again, err := m.Start(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != sess.ID || again.String(KeyUsername) != "alice" {
		t.Fatalf("expected session %s with username, got %s %v", sess.ID, again.ID, again.Values)
	}
}

// TestManager_UnknownCookie verifies a stale cookie yields a fresh session.
func TestManager_UnknownCookie(t *testing.T) {
	m := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "pace_session", Value: "forged"})

	sess, err := m.Start(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.IsNew() || sess.ID == "forged" {
		t.Fatalf("expected a fresh session, got %s", sess.ID)
	}
}

// TestManager_Renew verifies the old ID stops resolving after a re-key.
func TestManager_Renew(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess := New(time.Hour)
	if err := m.Save(ctx, httptest.NewRecorder(), sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	old := sess.ID

	rec := httptest.NewRecorder()
	if err := m.Renew(ctx, rec, sess); err != nil {
		t.Fatalf("renew failed: %v", err)
	}

	if sess.ID == old {
		t.Fatal("expected a new session ID")
	}
	if sessionCookie(t, rec).Value != sess.ID {
		t.Fatal("expected the cookie to carry the new ID")
	}
	if _, err := m.Store().Load(ctx, old); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Fatalf("expected old ID to be gone, got %v", err)
	}
}

func TestManager_Destroy(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	sess := New(time.Hour)
	_ = m.Save(ctx, httptest.NewRecorder(), sess)

	rec := httptest.NewRecorder()
	if err := m.Destroy(ctx, rec, sess); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	if c := sessionCookie(t, rec); c.MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got MaxAge %d", c.MaxAge)
	}
	if _, err := m.Store().Load(ctx, sess.ID); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Fatalf("expected session to be deleted, got %v", err)
	}
}

func TestNewStore_UnknownBackend(t *testing.T) {
	if _, err := NewStore(context.Background(), config.SessionConfig{Backend: "etcd"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
