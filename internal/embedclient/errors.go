// Package embedclient calls the configured embedding provider, applying
// the preprocessing, retry, and circuit-breaking policy the crawler and
// query surface both depend on.
package embedclient

import "errors"

var (
	// ErrNoInput is returned when the preprocessed text is empty.
	ErrNoInput = errors.New("embedclient: no input text")
	// ErrEmbeddingUnavailable is returned after retries are exhausted.
	ErrEmbeddingUnavailable = errors.New("embedclient: embedding provider unavailable")
	// ErrEmbeddingShape is returned when the provider returns the wrong dimensionality.
	ErrEmbeddingShape = errors.New("embedclient: embedding has unexpected shape")
)
