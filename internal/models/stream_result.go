package models

// StreamResult holds either a value or an error from a streaming operation.
// Per-file translation results are delivered this way so callers can render
// each file as soon as it finishes.
type StreamResult[T any] struct {
	Value T
	Err   error
}

// Collect drains a result stream into a slice, stopping at the first error.
func Collect[T any](stream <-chan StreamResult[T]) ([]T, error) {
	var out []T
	for r := range stream {
		if r.Err != nil {
			return out, r.Err
		}
		out = append(out, r.Value)
	}
	return out, nil
}
