package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/canonica-labs/pace/internal/errors"
	"github.com/canonica-labs/pace/pkg/api"
)

// handleIndex renders the login form for anonymous sessions and the
// dashboard otherwise. Nothing touches the database before the gate passes.
func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if !g.gate.IsAuthenticated(sess) {
		g.render(w, http.StatusOK, g.pages.login, &loginPage{Title: pageTitle})
		return
	}

	ctx := r.Context()
	page := newDashboardPage(g.gate.User(sess).Name)

	listing, err := g.viewer.ListTables(ctx)
	if err != nil {
		page.ConnectionError, page.ConnectionDetail = connectionMessage(err)
		g.render(w, http.StatusOK, g.pages.dashboard, page)
		return
	}

	switch {
	case listing.Failed():
		page.ListError = "Unable to list tables. " + reasonOf(listing.Err)
		g.render(w, http.StatusOK, g.pages.dashboard, page)
		return
	case listing.Empty():
		page.NoTables = true
		g.render(w, http.StatusOK, g.pages.dashboard, page)
		return
	}

	page.Tables = listing.Names
	page.Selected = r.URL.Query().Get(api.ParamTable)
	if page.Selected == "" {
		page.Selected = listing.Names[0]
	}
	page.Limit = api.ClampRowLimit(atoiOrZero(r.URL.Query().Get(api.ParamLimit)))

	snap, err := g.viewer.FetchRows(ctx, page.Selected, page.Limit)
	if err != nil {
		page.FetchError = userMessage(err)
	}
	page.Columns = snap.Columns
	page.Rows = snap.Rows
	page.RowCount = snap.RowCount()
	page.ColCount = snap.ColumnCount()

	g.render(w, http.StatusOK, g.pages.dashboard, page)
}

// handleLogin runs the placeholder login. Success re-keys the session and
// redirects; failure re-renders the form with the message.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	if err := r.ParseForm(); err != nil {
		g.render(w, http.StatusBadRequest, g.pages.login, &loginPage{Title: pageTitle, Error: "Invalid form submission."})
		return
	}
	username := r.PostForm.Get(api.ParamUsername)
	password := r.PostForm.Get(api.ParamPassword)

	if _, err := g.gate.Login(ctx, sess, username, password); err != nil {
		g.render(w, http.StatusBadRequest, g.pages.login, &loginPage{
			Title:    pageTitle,
			Username: username,
			Error:    userMessage(err),
		})
		return
	}

	if err := g.sessions.Renew(ctx, w, sess); err != nil {
		g.log.Error().Err(err).Msg("saving session after login failed")
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, api.PathRoot, http.StatusSeeOther)
}

// handleLogout clears the login and every shared cache, then sends the
// browser back to the login form. Anonymous requests only redirect.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	if !g.gate.IsAuthenticated(sess) {
		http.Redirect(w, r, api.PathRoot, http.StatusSeeOther)
		return
	}

	g.gate.Logout(ctx, sess)

	if err := g.sessions.Save(ctx, w, sess); err != nil {
		g.log.Warn().Err(err).Msg("saving session after logout failed, destroying it")
		// The stored copy is still logged in; it must not outlive the logout.
		if err := g.sessions.Destroy(ctx, w, sess); err != nil {
			g.log.Error().Err(err).Msg("destroying session after logout failed")
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	http.Redirect(w, r, api.PathRoot, http.StatusSeeOther)
}

// userMessage is the first line of an error: the message without the
// reason and suggestion details.
func userMessage(err error) string {
	return firstLine(err.Error())
}

// connectionMessage splits a connection failure into the operator message
// and the underlying cause.
func connectionMessage(err error) (message, detail string) {
	var connErr *errors.ErrConnection
	if errors.As(err, &connErr) {
		if connErr.Cause != nil {
			detail = firstLine(connErr.Cause.Error())
		}
		return connErr.Message, detail
	}
	return userMessage(err), ""
}

// reasonOf returns the most specific description of err available.
func reasonOf(err error) string {
	var qErr *errors.ErrQuery
	if errors.As(err, &qErr) && qErr.Cause != nil {
		return firstLine(qErr.Cause.Error())
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
