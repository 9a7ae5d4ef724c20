package wrap

// SyncHooks is the synchronous capability. Hooks run on the caller's goroutine,
// back to back with the body.
type SyncHooks[T any] interface {
	// Before runs immediately before the body. An error aborts the activation:
	// neither the body nor After run.
	Before(caller *CallerContext) error

	// After runs immediately after the body returned and may rewrite the result.
	// An error replaces the body's own error.
	After(caller *CallerContext, result *Result[T]) error
}

// Initializer is implemented by contexts whose construction can fail.
// Init is called on the freshly allocated value before Before.
type Initializer interface {
	Init(caller *CallerContext) error
}

// SyncPointer is satisfied by *C when C's pointer implements SyncHooks[T].
// It lets callers name only the context type: RunSync[Timer](caller, body).
type SyncPointer[C any, T any] interface {
	*C
	SyncHooks[T]
}

// Factory builds the context for one activation.
type Factory[T any] func(caller *CallerContext) (SyncHooks[T], error)

// RunSync runs body inside a fresh C.
//
// The sequence is new(C), Init when C implements Initializer, Before, body,
// After. The body runs at most once. A panic in the body skips After.
func RunSync[C any, PC SyncPointer[C, T], T any](caller *CallerContext, body func() (T, error)) (T, error) {
	return runSync[T](caller, construct[C, PC, T], body)
}

// RunSyncWith is RunSync with an explicit factory instead of new(C).
func RunSyncWith[T any](caller *CallerContext, factory Factory[T], body func() (T, error)) (T, error) {
	return runSync[T](caller, factory, body)
}

func construct[C any, PC SyncPointer[C, T], T any](caller *CallerContext) (SyncHooks[T], error) {
	hooks := PC(new(C))
	if init, ok := any(hooks).(Initializer); ok {
		if err := init.Init(caller); err != nil {
			return nil, err
		}
	}
	return hooks, nil
}

func runSync[T any](caller *CallerContext, factory Factory[T], body func() (T, error)) (T, error) {
	var zero T
	if body == nil {
		return zero, ErrNilBody
	}

	hooks, err := factory(caller)
	if err != nil {
		return zero, newHookError(StageInit, caller, err)
	}

	if err := hooks.Before(caller); err != nil {
		return zero, newHookError(StageBefore, caller, err)
	}

	var result Result[T]
	result.Value, result.Err = body()

	if err := hooks.After(caller, &result); err != nil {
		return result.Value, newHookError(StageAfter, caller, err)
	}
	return result.Value, result.Err
}
