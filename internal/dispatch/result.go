package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Result is the caller's handle on a queued request. It resolves exactly
// once, with the callback's value or its error.
type Result struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once

	value any
	err   error
}

func newResult() *Result {
	return &Result{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// ID identifies the request in logs.
func (r *Result) ID() uuid.UUID {
	return r.id
}

// Done is closed once the result is available.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request has run or ctx ends. Giving up on the wait
// does not cancel the request.
func (r *Result) Wait(ctx context.Context) (any, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Result) resolve(value any, err error) {
	r.once.Do(func() {
		r.value, r.err = value, err
		close(r.done)
	})
}

// Await waits on r and asserts the value to T.
func Await[T any](ctx context.Context, r *Result) (T, error) {
	var zero T
	v, err := r.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("dispatch: result %s holds %T, want %T", r.id, v, zero)
	}
	return t, nil
}
