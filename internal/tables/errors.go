package tables

import "errors"

var errNoHandle = errors.New("no database connection")
