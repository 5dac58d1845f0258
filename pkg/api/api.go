// Package api defines the public HTTP endpoints of the pace viewer.
package api

// API version
const Version = "0.1.0"

// Pages
const (
	PathRoot   = "/"
	PathLogin  = "/login"
	PathLogout = "/logout"
)

// API endpoints
const (
	EndpointTables  = "/api/v1/tables"
	EndpointTable   = "/api/v1/tables/{name}"
	EndpointSession = "/api/v1/session"
	EndpointStatus  = "/api/v1/status"
	EndpointHealth  = "/health"
	EndpointReady   = "/readyz"
	EndpointMetrics = "/metrics"
)

// Row limit bounds of the viewer controls.
const (
	MinRowLimit     = 100
	MaxRowLimit     = 5000
	RowLimitStep    = 100
	DefaultRowLimit = 500
)

// Query and form parameters
const (
	ParamTable    = "table"
	ParamLimit    = "limit"
	ParamUsername = "username"
	ParamPassword = "password"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// ClampRowLimit keeps limit inside [MinRowLimit, MaxRowLimit] and on a
// RowLimitStep boundary, rounding down. Non-positive values select the default.
func ClampRowLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRowLimit
	case limit < MinRowLimit:
		return MinRowLimit
	case limit > MaxRowLimit:
		return MaxRowLimit
	}
	return limit - limit%RowLimitStep
}
