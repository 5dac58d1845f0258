// Package errors provides explicit, human-readable error types for pace.
// Every error carries a Reason and a Suggestion so the page that renders it
// can tell the operator what to do next.
package errors

import (
	"errors"
	"fmt"
)

// PaceError is the base error type for all pace errors.
type PaceError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code and HTTP status mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeAuth       ErrorCode = 2
	CodeConnection ErrorCode = 3
	CodeQuery      ErrorCode = 4
	CodeInternal   ErrorCode = 5
)

func (e *PaceError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *PaceError) Unwrap() error {
	return e.Cause
}

// ErrSessionNotFound is returned by session stores when an ID maps to nothing.
var ErrSessionNotFound = errors.New("session not found")

// ErrAuthValidation is returned when a login attempt is missing a field.
type ErrAuthValidation struct {
	PaceError
}

// NewAuthValidation creates a new ErrAuthValidation.
func NewAuthValidation() *ErrAuthValidation {
	return &ErrAuthValidation{
		PaceError: PaceError{
			Code:       CodeAuth,
			Message:    "Please enter both username and password.",
			Reason:     "username or password is empty",
			Suggestion: "fill in both fields and submit again",
		},
	}
}

// ErrConnection is returned when the database cannot be reached.
type ErrConnection struct {
	PaceError
	Driver string
	Server string
}

// NewConnection creates a new ErrConnection wrapping the driver error.
func NewConnection(driver, server string, cause error) *ErrConnection {
	return &ErrConnection{
		PaceError: PaceError{
			Code:       CodeConnection,
			Message:    "Unable to connect to database. Please check .env credentials.",
			Reason:     fmt.Sprintf("driver %q could not reach %q", driver, server),
			Suggestion: "verify DB_SERVER, DB_DATABASE, DB_USERNAME and DB_PASSWORD",
			Cause:      cause,
		},
		Driver: driver,
		Server: server,
	}
}

// ErrConfig is returned when required configuration is missing or invalid.
type ErrConfig struct {
	PaceError
	Missing []string
}

// NewMissingConfig creates an ErrConfig listing unset variables.
func NewMissingConfig(missing []string) *ErrConfig {
	return &ErrConfig{
		PaceError: PaceError{
			Code:       CodeValidation,
			Message:    "database configuration incomplete",
			Reason:     fmt.Sprintf("required variables not set: %v", missing),
			Suggestion: "set them in the environment or in the .env file",
		},
		Missing: missing,
	}
}

// NewUnknownDriver creates an ErrConfig for a DB_DRIVER no adapter understands.
func NewUnknownDriver(driver string, available []string) *ErrConfig {
	return &ErrConfig{
		PaceError: PaceError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("unsupported database driver: %s", driver),
			Reason:     "no adapter matches DB_DRIVER",
			Suggestion: fmt.Sprintf("use one of: %v", available),
		},
	}
}

// ErrQuery is returned when a metadata or row query fails.
type ErrQuery struct {
	PaceError
	Operation string
	Table     string
}

// NewQuery creates a new ErrQuery.
func NewQuery(operation, table string, cause error) *ErrQuery {
	reason := fmt.Sprintf("%s failed", operation)
	if table != "" {
		reason = fmt.Sprintf("%s on %s failed", operation, table)
	}
	return &ErrQuery{
		PaceError: PaceError{
			Code:       CodeQuery,
			Message:    "query failed",
			Reason:     reason,
			Suggestion: "check the database user's permissions and connectivity",
			Cause:      cause,
		},
		Operation: operation,
		Table:     table,
	}
}

// ErrTableNotAllowed is returned when a table name is not one the schema
// listing produced.
type ErrTableNotAllowed struct {
	PaceError
	Table string
}

// NewTableNotAllowed creates a new ErrTableNotAllowed.
func NewTableNotAllowed(table string) *ErrTableNotAllowed {
	return &ErrTableNotAllowed{
		PaceError: PaceError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("table not available: %s", table),
			Reason:     "table is not a base table of the connected database",
			Suggestion: "pick a table from the list",
		},
		Table: table,
	}
}

// ErrInvalidRowLimit is returned when a row limit is not a positive number.
type ErrInvalidRowLimit struct {
	PaceError
	Limit int
}

// NewInvalidRowLimit creates a new ErrInvalidRowLimit.
func NewInvalidRowLimit(limit int) *ErrInvalidRowLimit {
	return &ErrInvalidRowLimit{
		PaceError: PaceError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("invalid row limit: %d", limit),
			Reason:     "the row limit must be at least 1",
			Suggestion: "use a limit between 100 and 5000",
		},
		Limit: limit,
	}
}

// ErrMigrationFailed is returned when a session schema migration fails.
type ErrMigrationFailed struct {
	PaceError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(migration string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		PaceError: PaceError{
			Code:       CodeInternal,
			Message:    fmt.Sprintf("migration failed: %s", migration),
			Reason:     "the session schema could not be applied",
			Suggestion: "check that the session database user can create tables",
			Cause:      cause,
		},
		Migration: migration,
	}
}

// CodeOf returns the ErrorCode of err, or CodeInternal when err is not a PaceError.
func CodeOf(err error) ErrorCode {
	var pe interface{ code() ErrorCode }
	if errors.As(err, &pe) {
		return pe.code()
	}
	return CodeInternal
}

func (e *PaceError) code() ErrorCode {
	return e.Code
}

// Details returns the PaceError carried by err, if any.
func Details(err error) (*PaceError, bool) {
	var pe interface{ details() *PaceError }
	if errors.As(err, &pe) {
		return pe.details(), true
	}
	return nil, false
}

func (e *PaceError) details() *PaceError {
	return e
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
