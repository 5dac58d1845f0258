// Package models provides the JSON shapes of the pace viewer API.
package models

import (
	"time"
)

// TableList is the API response for the table listing.
type TableList struct {
	Tables []string `json:"tables"`
	Count  int      `json:"count"`

	// Warning is set when the listing is empty or could not be produced.
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TableData is the API response for a row snapshot.
type TableData struct {
	Table     string    `json:"table"`
	Columns   []string  `json:"columns"`
	Rows      [][]any   `json:"rows"`
	RowCount  int       `json:"row_count"`
	Limit     int       `json:"limit"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// SessionStatus is the API response for the caller's session.
type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// ErrorResponse is the API response for errors.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}
