package wrap

import (
	"errors"
	"fmt"
)

// Stage identifies where in an activation a fault happened.
type Stage string

const (
	StageInit   Stage = "init"   // context construction
	StageBefore Stage = "before" // Before hook
	StageAfter  Stage = "after"  // After hook
	StageCancel Stage = "cancel" // context done between steps
)

var (
	// ErrNilBody is returned when a wrapper is handed a nil body.
	ErrNilBody = errors.New("wrap: nil body")

	// ErrCancelled marks activations stopped by context cancellation.
	// The returned error also wraps the context's own error.
	ErrCancelled = errors.New("wrap: activation cancelled")
)

// HookError is a fault raised by the context rather than the wrapped body.
type HookError struct {
	Err    error
	Caller string
	Stage  Stage
}

func newHookError(stage Stage, caller *CallerContext, err error) *HookError {
	return &HookError{Stage: stage, Caller: caller.QualifiedName(), Err: err}
}

// Error implements the error interface.
func (e *HookError) Error() string {
	if e.Caller == "" {
		return fmt.Sprintf("wrap: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("wrap: %s %s: %v", e.Caller, e.Stage, e.Err)
}

// Unwrap returns the hook's own error.
func (e *HookError) Unwrap() error {
	return e.Err
}

// Is matches ErrCancelled for cancellation faults.
func (e *HookError) Is(target error) bool {
	return target == ErrCancelled && e.Stage == StageCancel
}

// StageOf returns the stage of the first HookError in err's chain.
func StageOf(err error) (Stage, bool) {
	var he *HookError
	if errors.As(err, &he) {
		return he.Stage, true
	}
	return "", false
}
