package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/canonica-labs/pace/internal/config"
	"github.com/canonica-labs/pace/internal/connection/connectiontest"
	"github.com/canonica-labs/pace/pkg/models"
)

// writeDatabase creates a sqlite file holding schema and points DB_* at it.
func writeDatabase(t *testing.T, schema ...[]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pace.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()
	for _, stmts := range schema {
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("schema: %v", err)
			}
		}
	}

	setDatabaseEnv(t, "sqlite", path)
	return path
}

func setDatabaseEnv(t *testing.T, driver, database string) {
	t.Helper()
	t.Setenv("DB_DRIVER", driver)
	t.Setenv("DB_SERVER", "")
	t.Setenv("DB_DATABASE", database)
	t.Setenv("DB_USERNAME", "")
	t.Setenv("DB_PASSWORD", "")
}

// writeConfig writes an empty config file so no user config is picked up.
func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New()
	c.SetOutput(&out, &errOut)
	c.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	code := c.ExecuteContext(context.Background())
	return out.String(), errOut.String(), code
}

// TestTables_JSONIsSorted verifies the listing is emitted in ascending order.
func TestTables_JSONIsSorted(t *testing.T) {
	// Arrange
	writeDatabase(t, connectiontest.UnorderedSchema)

	// Act
	out, errOut, code := run(t, "tables", "--json")

	// Assert
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	var list models.TableList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON: %v (%s)", err, out)
	}
	if strings.Join(list.Tables, ",") != "Alpha,Mid,Zeta" {
		t.Fatalf("expected Alpha,Mid,Zeta, got %v", list.Tables)
	}
}

func TestTables_Table(t *testing.T) {
	writeDatabase(t, connectiontest.OrdersSchema)

	out, errOut, code := run(t, "tables")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Orders") || strings.Contains(out, "OrderTotals") {
		t.Fatalf("expected only the base table, got:\n%s", out)
	}
}

func TestPreview_RendersRows(t *testing.T) {
	writeDatabase(t, connectiontest.OrdersSchema)

	out, errOut, code := run(t, "preview", "Orders", "--limit", "100")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	for _, want := range []string{"Table: Orders", "Initech", "NULL", "Showing 5 rows × 4 columns"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPreview_ClampsLimit(t *testing.T) {
	writeDatabase(t, connectiontest.SeriesSchema("Numbers", 250))

	out, errOut, code := run(t, "preview", "Numbers", "--limit", "7", "--json")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	var data models.TableData
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data.Limit != 100 || data.RowCount != 100 {
		t.Fatalf("expected 100 rows at limit 100, got %d at %d", data.RowCount, data.Limit)
	}
}

// TestPreview_RejectsUnlistedTable verifies views and unknown names are refused.
func TestPreview_RejectsUnlistedTable(t *testing.T) {
	writeDatabase(t, connectiontest.OrdersSchema)

	_, errOut, code := run(t, "preview", "OrderTotals")

	if code != ExitValidation {
		t.Fatalf("expected exit %d, got %d", ExitValidation, code)
	}
	if !strings.Contains(errOut, "table not available: OrderTotals") {
		t.Fatalf("unexpected error output: %s", errOut)
	}
}

func TestTables_ConnectionFailure(t *testing.T) {
	setDatabaseEnv(t, "sqlite", filepath.Join(t.TempDir(), "missing.db"))

	_, errOut, code := run(t, "tables")

	if code != ExitDatabase {
		t.Fatalf("expected exit %d, got %d", ExitDatabase, code)
	}
	if !strings.Contains(errOut, "Unable to connect to database. Please check .env credentials.") {
		t.Fatalf("unexpected error output: %s", errOut)
	}
}

func TestConfig_MasksPasswords(t *testing.T) {
	setDatabaseEnv(t, "postgres", "pace")
	t.Setenv("DB_PASSWORD", "hunter2")

	out, _, code := run(t, "config")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatal("password must not be printed")
	}
	if !strings.Contains(out, "********") || !strings.Contains(out, "driver: postgres") {
		t.Fatalf("unexpected config output:\n%s", out)
	}
}

func TestDoctor_MissingCredentials(t *testing.T) {
	setDatabaseEnv(t, "", "")

	out, _, code := run(t, "doctor")

	if code == ExitSuccess {
		t.Fatal("expected doctor to fail")
	}
	if !strings.Contains(out, "Missing database credentials") || !strings.Contains(out, "DB_SERVER") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}

func TestDoctor_Passes(t *testing.T) {
	writeDatabase(t, connectiontest.OrdersSchema)

	out, _, code := run(t, "doctor", "--json")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, out)
	}
	var resp struct {
		Checks    []DiagnosticCheck `json:"checks"`
		AllPassed bool              `json:"all_passed"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.AllPassed || len(resp.Checks) != 4 {
		t.Fatalf("expected 4 passing checks, got %+v", resp.Checks)
	}
}

func TestVersion_JSON(t *testing.T) {
	out, _, code := run(t, "version", "--json")

	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var info VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Version != Version {
		t.Fatalf("expected version %s, got %s", Version, info.Version)
	}
}

// TestBuildApp_Serves verifies the assembled server answers health and
// readiness against a real database file.
func TestBuildApp_Serves(t *testing.T) {
	writeDatabase(t, connectiontest.OrdersSchema)
	cfg, err := config.Load(config.Options{ConfigPath: writeConfig(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := New()
	c.cfg = cfg

	a, err := c.buildApp(context.Background(), zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	for _, path := range []string{"/health", "/readyz", "/"} {
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}
