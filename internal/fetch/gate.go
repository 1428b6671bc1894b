package fetch

import (
	"context"
	"sync"
)

// BatchResult holds the outcome for one input slot of a Batch run.
type BatchResult[R any] struct {
	Value R
	Err   error
}

// Ok reports whether the slot produced a value.
func (r BatchResult[R]) Ok() bool {
	return r.Err == nil
}

// Batch runs fn over items with at most width concurrent calls. Results keep
// input order, and a failing item never disturbs its neighbors: its slot
// carries the error while the rest carry values.
func Batch[T, R any](ctx context.Context, width int, items []T, fn func(context.Context, T) (R, error)) []BatchResult[R] {
	results := make([]BatchResult[R], len(items))
	if len(items) == 0 {
		return results
	}
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)
	var wg sync.WaitGroup
	for i := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				results[j].Err = err
			}
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			value, err := fn(ctx, items[i])
			if err != nil {
				results[i].Err = err
				return
			}
			results[i].Value = value
		}()
	}
	wg.Wait()
	return results
}

// Values returns the successful results in slot order.
func Values[R any](results []BatchResult[R]) []R {
	values := make([]R, 0, len(results))
	for _, res := range results {
		if res.Ok() {
			values = append(values, res.Value)
		}
	}
	return values
}

// FailureCount returns how many slots failed.
func FailureCount[R any](results []BatchResult[R]) int {
	failed := 0
	for _, res := range results {
		if !res.Ok() {
			failed++
		}
	}
	return failed
}
