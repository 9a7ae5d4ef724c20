package wrap

import "context"

// Future is an asynchronous activation running on its own goroutine.
type Future[T any] struct {
	done     chan struct{}
	value    T
	err      error
	panicked any
}

// Go starts RunAsync[C] on a new goroutine and returns immediately. The
// goroutine ends with the activation; cancel ctx to stop it between steps.
func Go[C any, PC AsyncPointer[C, T], T any](ctx context.Context, caller *CallerContext, body func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.panicked = r
			}
		}()
		f.value, f.err = RunAsync[C, PC, T](ctx, caller, body)
	}()
	return f
}

// Done is closed when the activation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the activation finishes or ctx is done. A panic raised by
// the body is re-raised on the awaiting goroutine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if f.panicked != nil {
		panic(f.panicked)
	}
	return f.value, f.err
}
