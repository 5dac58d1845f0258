package gateway

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/canonica-labs/pace/pkg/api"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTitle   = "PACE — Predictive Accessorial Cost Detection Engine"
	pageCaption = "Database Table Viewer"
)

type pages struct {
	login     *template.Template
	dashboard *template.Template
}

var templateFuncs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"cell":  formatCell,
}

func loadPages() (*pages, error) {
	login, err := template.New("layout.html").Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}
	dashboard, err := template.New("layout.html").Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard page: %w", err)
	}
	return &pages{login: login, dashboard: dashboard}, nil
}

// loginPage is the data of the login form.
type loginPage struct {
	Title    string
	Username string
	Error    string
}

// dashboardPage is the data of the protected view.
type dashboardPage struct {
	Title    string
	Caption  string
	Username string

	// ConnectionError is set when no database connection could be made.
	// Nothing else is rendered then.
	ConnectionError  string
	ConnectionDetail string

	Tables    []string
	NoTables  bool
	ListError string

	Selected   string
	Limit      int
	MinLimit   int
	MaxLimit   int
	LimitStep  int
	FetchError string

	Columns  []string
	Rows     [][]any
	RowCount int
	ColCount int
}

// ShowTable reports whether the main panel has a table to render.
func (d *dashboardPage) ShowTable() bool {
	return d.ConnectionError == "" && len(d.Tables) > 0 && d.Selected != ""
}

func newDashboardPage(username string) *dashboardPage {
	return &dashboardPage{
		Title:     pageTitle,
		Caption:   pageCaption,
		Username:  username,
		Limit:     api.DefaultRowLimit,
		MinLimit:  api.MinRowLimit,
		MaxLimit:  api.MaxRowLimit,
		LimitStep: api.RowLimitStep,
	}
}

func (g *Gateway) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		g.log.Error().Err(err).Str("template", tmpl.Name()).Msg("rendering page failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set(api.HeaderContentType, api.ContentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format(time.RFC3339)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
