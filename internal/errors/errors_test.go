package errors

import (
	"fmt"
	"strings"
	"testing"
)

// TestError_Format verifies the message, reason, suggestion and cause lines.
func TestError_Format(t *testing.T) {
	err := NewConnection("sqlite", "db.internal", fmt.Errorf("connection refused"))

	lines := strings.Split(err.Error(), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), err.Error())
	}
	if lines[0] != "Unable to connect to database. Please check .env credentials." {
		t.Errorf("unexpected message line: %s", lines[0])
	}
	if lines[3] != "Caused by: connection refused" {
		t.Errorf("unexpected cause line: %s", lines[3])
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"auth", NewAuthValidation(), CodeAuth},
		{"connection", NewConnection("x", "y", nil), CodeConnection},
		{"query", NewQuery("fetch_rows", "Orders", fmt.Errorf("boom")), CodeQuery},
		{"not allowed", NewTableNotAllowed("Nope"), CodeValidation},
		{"wrapped", fmt.Errorf("listing: %w", NewInvalidRowLimit(0)), CodeValidation},
		{"plain", fmt.Errorf("plain"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("expected code %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", NewTableNotAllowed("Secrets"))

	pe, ok := Details(wrapped)

	if !ok {
		t.Fatal("expected details for a wrapped pace error")
	}
	if pe.Message != "table not available: Secrets" || pe.Suggestion == "" {
		t.Fatalf("unexpected details: %+v", pe)
	}
	if _, ok := Details(fmt.Errorf("plain")); ok {
		t.Fatal("expected no details for a plain error")
	}
}

func TestUnwrap_ReachesCause(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := NewQuery("list_tables", "", cause)

	if !Is(err, cause) {
		t.Fatal("expected the cause to be reachable with Is")
	}
	var qErr *ErrQuery
	if !As(fmt.Errorf("wrap: %w", err), &qErr) || qErr.Operation != "list_tables" {
		t.Fatal("expected As to find the ErrQuery")
	}
}
