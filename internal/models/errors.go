package models

import "fmt"

// ProviderError wraps a failure of the embedding provider or the vector index.
// It is never recovered into a fallback message.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
