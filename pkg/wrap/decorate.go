package wrap

import "context"

// Func decorates fn with context type C. The CallerContext is built once, here.
func Func[C any, PC SyncPointer[C, T], T any](name string, fn func() (T, error), opts ...CallerOption) func() (T, error) {
	caller := NewCaller(name, opts...)
	return func() (T, error) {
		return RunSync[C, PC, T](caller, fn)
	}
}

// Func1 decorates a one-argument fn with context type C.
func Func1[C any, PC SyncPointer[C, T], A, T any](name string, fn func(A) (T, error), opts ...CallerOption) func(A) (T, error) {
	caller := NewCaller(name, opts...)
	return func(a A) (T, error) {
		return RunSync[C, PC, T](caller, func() (T, error) {
			return fn(a)
		})
	}
}

// Decorate wraps fn with contexts produced by factory.
func Decorate[T any](name string, factory Factory[T], fn func() (T, error), opts ...CallerOption) func() (T, error) {
	caller := NewCaller(name, opts...)
	return func() (T, error) {
		return RunSyncWith[T](caller, factory, fn)
	}
}

// AsyncFunc decorates a context-taking fn with asynchronous context type C.
func AsyncFunc[C any, PC AsyncPointer[C, T], T any](name string, fn func(context.Context) (T, error), opts ...CallerOption) func(context.Context) (T, error) {
	caller := NewCaller(name, append(opts[:len(opts):len(opts)], Async())...)
	return func(ctx context.Context) (T, error) {
		return RunAsync[C, PC, T](ctx, caller, func() (T, error) {
			return fn(ctx)
		})
	}
}

// AsyncFunc1 decorates a one-argument context-taking fn.
func AsyncFunc1[C any, PC AsyncPointer[C, T], A, T any](name string, fn func(context.Context, A) (T, error), opts ...CallerOption) func(context.Context, A) (T, error) {
	caller := NewCaller(name, append(opts[:len(opts):len(opts)], Async())...)
	return func(ctx context.Context, a A) (T, error) {
		return RunAsync[C, PC, T](ctx, caller, func() (T, error) {
			return fn(ctx, a)
		})
	}
}

// DecorateAsync wraps fn with asynchronous contexts produced by factory.
func DecorateAsync[T any](name string, factory AsyncFactory[T], fn func(context.Context) (T, error), opts ...CallerOption) func(context.Context) (T, error) {
	caller := NewCaller(name, append(opts[:len(opts):len(opts)], Async())...)
	return func(ctx context.Context) (T, error) {
		return RunAsyncWith[T](ctx, caller, factory, func() (T, error) {
			return fn(ctx)
		})
	}
}
