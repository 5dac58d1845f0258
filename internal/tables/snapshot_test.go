package tables

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/pace/internal/connection"
	"github.com/canonica-labs/pace/internal/connection/connectiontest"
	"github.com/canonica-labs/pace/internal/errors"
)

func newHandle(t *testing.T, schema ...[]string) *connection.Handle {
	t.Helper()
	m := connection.NewManager(connectiontest.NewFixture(schema...).Open)
	t.Cleanup(func() { _ = m.Close() })

	h, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h
}

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(16, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

// TestFetch_AllRowsUnderLimit verifies a table smaller than the limit is returned whole.
func TestFetch_AllRowsUnderLimit(t *testing.T) {
	// Arrange
	h := newHandle(t, connectiontest.OrdersSchema)
	f := newFetcher(t)

	// Act
	snap, err := f.Fetch(context.Background(), h, "Orders", 100)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.RowCount() != 5 {
		t.Fatalf("expected 5 rows, got %d", snap.RowCount())
	}
	want := []string{"id", "customer", "amount", "shipped_at"}
	if snap.ColumnCount() != len(want) {
		t.Fatalf("expected columns %v, got %v", want, snap.Columns)
	}
	for i, c := range want {
		if snap.Columns[i] != c {
			t.Fatalf("expected columns %v, got %v", want, snap.Columns)
		}
	}
	if snap.Rows[2][3] != nil {
		t.Fatalf("expected NULL to scan as nil, got %v", snap.Rows[2][3])
	}
}

// TestFetch_DistinctLimitsAreIndependent verifies each limit is its own entry.
func TestFetch_DistinctLimitsAreIndependent(t *testing.T) {
	h := newHandle(t, connectiontest.SeriesSchema("Events", 300))
	f := newFetcher(t)
	ctx := context.Background()

	for _, tt := range []struct{ limit, want int }{
		{100, 100},
		{200, 200},
		{100, 100},
		{5000, 300},
	} {
		snap, err := f.Fetch(ctx, h, "Events", tt.limit)
		if err != nil {
			t.Fatalf("limit %d: unexpected error: %v", tt.limit, err)
		}
		if snap.RowCount() != tt.want {
			t.Fatalf("limit %d: expected %d rows, got %d", tt.limit, tt.want, snap.RowCount())
		}
		if snap.Limit != tt.limit {
			t.Fatalf("expected snapshot limit %d, got %d", tt.limit, snap.Limit)
		}
	}
}

// TestFetch_Memoized verifies a repeated fetch is served without requerying.
func TestFetch_Memoized(t *testing.T) {
	h := newHandle(t, connectiontest.OrdersSchema)
	f := newFetcher(t)
	ctx := context.Background()

	first, _ := f.Fetch(ctx, h, "Orders", 100)
	if _, err := h.DB.Exec(`INSERT INTO Orders VALUES (6, 'Hooli', 1.00, NULL)`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := f.Fetch(ctx, h, "Orders", 100)

	if first != second {
		t.Fatal("expected the memoized snapshot")
	}

	f.Clear()
	third, _ := f.Fetch(ctx, h, "Orders", 100)
	if third.RowCount() != 6 {
		t.Fatalf("expected 6 rows after Clear, got %d", third.RowCount())
	}
}

// TestFetch_FailureReturnsEmpty verifies a failed read yields an empty snapshot
// and is retried on the next call.
func TestFetch_FailureReturnsEmpty(t *testing.T) {
	h := newHandle(t)
	f := newFetcher(t)
	ctx := context.Background()

	snap, err := f.Fetch(ctx, h, "Missing", 100)

	var qErr *errors.ErrQuery
	if !errors.As(err, &qErr) {
		t.Fatalf("expected ErrQuery, got %T: %v", err, err)
	}
	if qErr.Table != "Missing" {
		t.Fatalf("expected table Missing, got %q", qErr.Table)
	}
	if snap == nil || !snap.IsEmpty() || snap.ColumnCount() != 0 {
		t.Fatalf("expected an empty snapshot, got %+v", snap)
	}

	if _, err := h.DB.Exec(`CREATE TABLE Missing (id INTEGER)`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.Fetch(ctx, h, "Missing", 100); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestFetch_BytesBecomeStrings(t *testing.T) {
	h := newHandle(t, []string{
		`CREATE TABLE Blobs (payload BLOB)`,
		`INSERT INTO Blobs VALUES (X'6869')`,
	})
	f := newFetcher(t)

	snap, err := f.Fetch(context.Background(), h, "Blobs", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := snap.Rows[0][0].(string); !ok || got != "hi" {
		t.Fatalf("expected string \"hi\", got %T %v", snap.Rows[0][0], snap.Rows[0][0])
	}
}

func TestFetch_NilHandle(t *testing.T) {
	f := newFetcher(t)

	snap, err := f.Fetch(context.Background(), nil, "Orders", 100)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !snap.IsEmpty() {
		t.Fatal("expected an empty snapshot")
	}
}

func TestFetch_CancelledCallerStillLoads(t *testing.T) {
	h := newHandle(t, connectiontest.OrdersSchema)
	f := newFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := f.Fetch(ctx, h, "Orders", 100)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.RowCount() != 5 {
		t.Fatalf("expected 5 rows, got %d", snap.RowCount())
	}
}
