package connection

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/canonica-labs/pace/internal/adapters"
	"github.com/canonica-labs/pace/internal/adapters/sqlite"
	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/connection/connectiontest"
	"github.com/canonica-labs/pace/internal/errors"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestManager_GetIsMemoized verifies repeated calls return the same handle.
func TestManager_GetIsMemoized(t *testing.T) {
	// Arrange
	fixture := connectiontest.NewFixture(connectiontest.OrdersSchema)
	m := NewManager(fixture.Open)
	defer m.Close()

	// Act
	first, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Assert
	if first != second {
		t.Fatalf("expected the same handle, got %s and %s", first.ID, second.ID)
	}
	if fixture.Opens() != 1 {
		t.Fatalf("expected 1 open, got %d", fixture.Opens())
	}
}

// TestManager_ConcurrentFirstUseOpensOnce verifies concurrent first callers
// share one open.
func TestManager_ConcurrentFirstUseOpensOnce(t *testing.T) {
	fixture := connectiontest.NewFixture(connectiontest.OrdersSchema)
	release := fixture.Hold()
	m := NewManager(fixture.Open)
	defer m.Close()

	const callers = 10
	handles := make([]*Handle, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = m.Get(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return fixture.Opens() == 1 })
	release()
	wg.Wait()

	for i := range handles {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if fixture.Opens() != 1 {
		t.Fatalf("expected 1 open, got %d", fixture.Opens())
	}
}

// TestManager_InvalidateOpensFreshHandle verifies a new handle follows Invalidate.
func TestManager_InvalidateOpensFreshHandle(t *testing.T) {
	fixture := connectiontest.NewFixture(connectiontest.OrdersSchema)
	m := NewManager(fixture.Open)
	defer m.Close()

	before, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Invalidate()

	if _, ok := m.Current(); ok {
		t.Fatal("expected no cached handle after Invalidate")
	}
	after, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.ID == before.ID {
		t.Fatal("expected a new handle identity after Invalidate")
	}
	if after.Generation != before.Generation+1 {
		t.Fatalf("expected generation %d, got %d", before.Generation+1, after.Generation)
	}
	if fixture.Opens() != 2 {
		t.Fatalf("expected 2 opens, got %d", fixture.Opens())
	}
}

// TestManager_FailureIsNotCached verifies a failed open is retried.
func TestManager_FailureIsNotCached(t *testing.T) {
	fixture := connectiontest.NewFixture(connectiontest.OrdersSchema)
	fixture.FailWith(stderrors.New("login failed for user"))
	m := NewManager(fixture.Open)
	defer m.Close()

	if _, err := m.Get(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := m.Current(); ok {
		t.Fatal("a failed open must not be cached")
	}

	fixture.FailWith(nil)
	if _, err := m.Get(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if fixture.Opens() != 2 {
		t.Fatalf("expected 2 opens, got %d", fixture.Opens())
	}
}

// TestManager_OpenStraddlingInvalidate verifies a handle opened across an
// Invalidate is never served.
func TestManager_OpenStraddlingInvalidate(t *testing.T) {
	fixture := connectiontest.NewFixture(connectiontest.OrdersSchema)
	release := fixture.Hold()
	m := NewManager(fixture.Open)
	defer m.Close()

	done := make(chan *Handle)
	go func() {
		h, err := m.Get(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- h
	}()

	waitFor(t, func() bool { return fixture.Opens() == 1 })
	m.Invalidate()
	release()

	h := <-done
	if h == nil {
		t.Fatal("expected a handle")
	}
	if h.Generation != 1 {
		t.Fatalf("expected handle from generation 1, got %d", h.Generation)
	}
	if fixture.Opens() != 2 {
		t.Fatalf("expected the stale open to be discarded and redone, got %d opens", fixture.Opens())
	}
}

func sqliteRegistry() *adapters.Registry {
	registry := adapters.NewRegistry()
	registry.Register(sqlite.NewAdapter())
	return registry
}

func TestNewOpener_InMemory(t *testing.T) {
	open := NewOpener(config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"}, sqliteRegistry())

	db, adapter, err := open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	if adapter.Name() != "sqlite" {
		t.Fatalf("expected sqlite adapter, got %s", adapter.Name())
	}
}

// TestNewOpener_Failures verifies every open failure surfaces as ErrConnection.
func TestNewOpener_Failures(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"unknown driver", config.DatabaseConfig{Driver: "Oracle", Database: "x"}},
		{"missing database", config.DatabaseConfig{Driver: "sqlite"}},
		{"unreachable file", config.DatabaseConfig{
			Driver:         "sqlite",
			Database:       filepath.Join(t.TempDir(), "missing", "pace.db"),
			ConnectTimeout: time.Second,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewOpener(tt.cfg, sqliteRegistry())(context.Background())

			var connErr *errors.ErrConnection
			if !errors.As(err, &connErr) {
				t.Fatalf("expected ErrConnection, got %T: %v", err, err)
			}
			if errors.CodeOf(err) != errors.CodeConnection {
				t.Fatalf("expected connection code, got %d", errors.CodeOf(err))
			}
		})
	}
}
