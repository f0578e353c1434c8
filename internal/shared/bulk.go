package shared

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// bulkConcurrency bounds parallel inserts for a single bulk request.
const bulkConcurrency = 4

// EntryError reports why one entry of a bulk request was not persisted.
type EntryError struct {
	Index   int              `json:"index"`
	Message string           `json:"message"`
	Errors  ValidationErrors `json:"errors,omitempty"`
}

// BulkResult holds the outcome of a bulk create. Created preserves input order.
type BulkResult[T any] struct {
	Created []T          `json:"data"`
	Failed  []EntryError `json:"errors,omitempty"`
	// Err is the first unexpected (non-validation, non-duplicate) failure.
	Err error `json:"-"`
}

// CreateEach persists every input independently. A failing entry never
// aborts the others; failures are reported per entry index.
func CreateEach[In, Out any](ctx context.Context, inputs []In, create func(context.Context, In) (Out, error)) BulkResult[Out] {
	outputs := make([]*Out, len(inputs))
	failures := make([]*EntryError, len(inputs))
	var (
		mu       sync.Mutex
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(bulkConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			out, err := create(ctx, in)
			if err == nil {
				outputs[i] = &out
				return nil
			}
			entry := &EntryError{Index: i, Message: UserSafeMessage(err)}
			var fieldErrs ValidationErrors
			switch {
			case errors.As(err, &fieldErrs):
				entry.Errors = fieldErrs
			case errors.Is(err, ErrDuplicateIdentity):
			default:
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			failures[i] = entry
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult[Out]{Created: make([]Out, 0, len(inputs)), Err: firstErr}
	for i := range inputs {
		if outputs[i] != nil {
			result.Created = append(result.Created, *outputs[i])
		}
		if failures[i] != nil {
			result.Failed = append(result.Failed, *failures[i])
		}
	}
	return result
}
