package wrap

import "context"

// NopBefore is an embeddable Before that does nothing.
type NopBefore struct{}

// Before implements SyncHooks.
func (NopBefore) Before(*CallerContext) error { return nil }

// NopAfter is an embeddable After that leaves the result untouched.
type NopAfter[T any] struct{}

// After implements SyncHooks.
func (NopAfter[T]) After(*CallerContext, *Result[T]) error { return nil }

// Nop implements SyncHooks with both hooks doing nothing. Embed it and
// override only the hook you need.
type Nop[T any] struct {
	NopBefore
	NopAfter[T]
}

// NopAsyncBefore is the asynchronous NopBefore.
type NopAsyncBefore struct{}

// Before implements AsyncHooks.
func (NopAsyncBefore) Before(context.Context, *CallerContext) error { return nil }

// NopAsyncAfter is the asynchronous NopAfter.
type NopAsyncAfter[T any] struct{}

// After implements AsyncHooks.
func (NopAsyncAfter[T]) After(context.Context, *CallerContext, *Result[T]) error { return nil }

// NopAsync implements AsyncHooks with both hooks doing nothing.
type NopAsync[T any] struct {
	NopAsyncBefore
	NopAsyncAfter[T]
}
