package wrap

// Void is the value type of functions that return nothing but, possibly, an error.
type Void struct{}

// Result is what the body produced. After hooks receive a pointer to it and may
// rewrite either field; the caller receives the final contents.
type Result[T any] struct {
	Value T
	Err   error
}

// Failed reports whether the body (or a hook) produced an error.
func (r *Result[T]) Failed() bool {
	return r.Err != nil
}

// Body adapts a body without an error result.
func Body[T any](fn func() T) func() (T, error) {
	return func() (T, error) {
		return fn(), nil
	}
}

// ErrBody adapts a body whose only result is an error.
func ErrBody(fn func() error) func() (Void, error) {
	return func() (Void, error) {
		return Void{}, fn()
	}
}

// VoidBody adapts a body without results.
func VoidBody(fn func()) func() (Void, error) {
	return func() (Void, error) {
		fn()
		return Void{}, nil
	}
}

// Must returns v, panicking with err when it is non-nil. Rewritten functions
// without an error result use it to surface hook faults.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// MustVoid is Must for functions without results.
func MustVoid(_ Void, err error) {
	if err != nil {
		panic(err)
	}
}

// ErrOf drops the value and returns the error.
func ErrOf[T any](_ T, err error) error {
	return err
}
