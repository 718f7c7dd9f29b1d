package live

import (
	"context"
)

// Result is one evaluation of a watched query
type Result[T any] struct {
	Value T
	Err   error
}

// Query reads the current value of a watched view
type Query[T any] func(ctx context.Context) (T, error)

// Watch evaluates query immediately and again after every change accepted
// by match, until ctx is done. Changes that arrive while an evaluation is
// running are coalesced into one re-evaluation. The returned channel is
// closed when the watch ends.
func Watch[T any](ctx context.Context, bus *Bus, match Matcher, query Query[T]) <-chan Result[T] {
	out := make(chan Result[T], 1)
	changes := bus.Subscribe(match)

	go func() {
		defer close(out)
		defer bus.Unsubscribe(changes)

		for {
			value, err := query(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Result[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-changes:
				if !ok {
					return
				}
				drain(changes)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func drain(ch <-chan Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
