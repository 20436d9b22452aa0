package storage

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when updating a run that was never begun.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed is returned by a CSVStore after Close.
	ErrClosed = errors.New("store is closed")
)
