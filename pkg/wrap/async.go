package wrap

import "context"

// AsyncHooks is the asynchronous capability. Hooks receive the activation's
// context and may block on it.
type AsyncHooks[T any] interface {
	Before(ctx context.Context, caller *CallerContext) error
	After(ctx context.Context, caller *CallerContext, result *Result[T]) error
}

// ContextInitializer is the asynchronous counterpart of Initializer.
type ContextInitializer interface {
	InitContext(ctx context.Context, caller *CallerContext) error
}

// AsyncPointer is satisfied by *C when C's pointer implements AsyncHooks[T].
type AsyncPointer[C any, T any] interface {
	*C
	AsyncHooks[T]
}

// AsyncFactory builds the context for one asynchronous activation.
type AsyncFactory[T any] func(ctx context.Context, caller *CallerContext) (AsyncHooks[T], error)

// RunAsync runs body inside a fresh C, observing ctx between steps.
//
// If ctx is done once construction or Before returns, the body never starts.
// If ctx is done when the body returns, After is skipped. In both cases the
// returned error matches ErrCancelled and the context's error.
func RunAsync[C any, PC AsyncPointer[C, T], T any](ctx context.Context, caller *CallerContext, body func() (T, error)) (T, error) {
	return runAsync[T](ctx, caller, constructAsync[C, PC, T], body)
}

// RunAsyncWith is RunAsync with an explicit factory.
func RunAsyncWith[T any](ctx context.Context, caller *CallerContext, factory AsyncFactory[T], body func() (T, error)) (T, error) {
	return runAsync[T](ctx, caller, factory, body)
}

func constructAsync[C any, PC AsyncPointer[C, T], T any](ctx context.Context, caller *CallerContext) (AsyncHooks[T], error) {
	hooks := PC(new(C))
	if init, ok := any(hooks).(ContextInitializer); ok {
		if err := init.InitContext(ctx, caller); err != nil {
			return nil, err
		}
	}
	return hooks, nil
}

func runAsync[T any](ctx context.Context, caller *CallerContext, factory AsyncFactory[T], body func() (T, error)) (T, error) {
	var zero T
	if body == nil {
		return zero, ErrNilBody
	}
	if ctx == nil {
		ctx = context.Background()
	}

	hooks, err := factory(ctx, caller)
	if err != nil {
		return zero, newHookError(StageInit, caller, err)
	}
	if ctx.Err() != nil {
		return zero, cancelled(ctx, caller)
	}

	if err := hooks.Before(ctx, caller); err != nil {
		return zero, newHookError(StageBefore, caller, err)
	}
	if ctx.Err() != nil {
		return zero, cancelled(ctx, caller)
	}

	var result Result[T]
	result.Value, result.Err = body()

	if ctx.Err() != nil {
		return zero, cancelled(ctx, caller)
	}

	if err := hooks.After(ctx, caller, &result); err != nil {
		return result.Value, newHookError(StageAfter, caller, err)
	}
	return result.Value, result.Err
}

func cancelled(ctx context.Context, caller *CallerContext) error {
	return newHookError(StageCancel, caller, context.Cause(ctx))
}
