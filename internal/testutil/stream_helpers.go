package testutil

import (
	"context"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// CollectStream consumes a result stream until it closes, stopping at the
// first error or when ctx is done. Values received before a failure are returned.
// This is a test helper and should not be used in production code.
func CollectStream[T any](ctx context.Context, stream <-chan models.StreamResult[T]) ([]T, error) {
	var out []T
	for {
		select {
		case result, ok := <-stream:
			if !ok {
				return out, nil
			}
			if result.Err != nil {
				return out, result.Err
			}
			out = append(out, result.Value)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}
