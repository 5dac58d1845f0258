package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/internal/status"
	"github.com/canonica-labs/pace/pkg/api"
	"github.com/canonica-labs/pace/pkg/models"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": g.config.Version,
	})
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	result := g.checker.Check(r.Context())
	code := http.StatusOK
	if !result.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, result)
}

func (g *Gateway) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	resp := models.SessionStatus{}
	if user := g.gate.User(sessionFrom(r.Context())); user != nil {
		resp.Authenticated = true
		resp.Username = user.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleListTables(w http.ResponseWriter, r *http.Request) {
	listing, err := g.viewer.ListTables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.TableList{Tables: listing.Names, Count: len(listing.Names)}
	if resp.Tables == nil {
		resp.Tables = []string{}
	}
	switch {
	case listing.Failed():
		resp.Warning = "Unable to list tables."
		resp.Error = reasonOf(listing.Err)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	case listing.Empty():
		resp.Warning = "No tables found in the database."
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleTableData(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid table name", err.Error(), "")
		return
	}

	limit := api.DefaultRowLimit
	if raw := r.URL.Query().Get(api.ParamLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid row limit", err.Error(), "use a whole number between 100 and 5000")
			return
		}
		limit = api.ClampRowLimit(n)
	}

	snap, err := g.viewer.FetchRows(r.Context(), name, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TableData{
		Table:     snap.Table,
		Columns:   snap.Columns,
		Rows:      snap.Rows,
		RowCount:  snap.RowCount(),
		Limit:     snap.Limit,
		FetchedAt: snap.FetchedAt,
	})
}

// statusResponse combines readiness with the access summary.
type statusResponse struct {
	Readiness *status.Result        `json:"readiness"`
	Access    *status.AccessSummary `json:"access,omitempty"`
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Readiness: g.checker.Check(r.Context())}
	if g.stats != nil {
		resp.Access = g.stats.Summary()
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusCode maps an error to the HTTP status the API reports for it.
func statusCode(err error) int {
	var (
		connErr    *errors.ErrConnection
		notAllowed *errors.ErrTableNotAllowed
		limitErr   *errors.ErrInvalidRowLimit
		queryErr   *errors.ErrQuery
		authErr    *errors.ErrAuthValidation
	)
	switch {
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &notAllowed):
		return http.StatusNotFound
	case errors.As(err, &limitErr), errors.As(err, &authErr):
		return http.StatusBadRequest
	case errors.As(err, &queryErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := models.ErrorResponse{
		Error: firstLine(err.Error()),
		Code:  int(errors.CodeOf(err)),
	}
	if pe, ok := errors.Details(err); ok {
		resp.Error = pe.Message
		resp.Reason = pe.Reason
		resp.Suggestion = pe.Suggestion
	}
	writeJSONStatus(w, statusCode(err), resp)
}

func writeJSONError(w http.ResponseWriter, code int, message, reason, suggestion string) {
	writeJSONStatus(w, code, models.ErrorResponse{
		Error:      message,
		Reason:     reason,
		Suggestion: suggestion,
		Code:       int(errors.CodeValidation),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	writeJSONStatus(w, code, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
