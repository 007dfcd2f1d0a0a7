package models

import "errors"

var (
	// ErrStoreUnavailable is returned when the embedding store cannot be written.
	// Read failures are absorbed and yield an empty store instead.
	ErrStoreUnavailable = errors.New("embedding store unavailable")

	// ErrNotFound is returned when a note or its embedding does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingProvider is returned when the embedding provider fails.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
