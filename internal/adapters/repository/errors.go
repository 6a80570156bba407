package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotConfigured = errors.New("table not configured")
	ErrUnknownTable  = errors.New("unknown table key")
)
