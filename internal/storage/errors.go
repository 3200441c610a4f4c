package storage

import "errors"

var (
	// ErrNotFound is returned when a token or cycle does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a token id or mint, or a cycle id,
	// is already stored. Cycle history and analytics rows are never rewritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for records missing their identifying fields
	// or carrying an unknown status.
	ErrInvalidInput = errors.New("invalid input")
)
