package wrap

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logged is a ready-made synchronous context that writes one log line before
// and one after every activation, correlated by a per-activation id.
type Logged[T any] struct {
	id    string
	start time.Time
}

// Init assigns the activation id.
func (l *Logged[T]) Init(*CallerContext) error {
	l.id = uuid.NewString()
	return nil
}

// Before implements SyncHooks.
func (l *Logged[T]) Before(caller *CallerContext) error {
	l.start = time.Now()
	Logger().Debug("call started", callFields(caller, l.id)...)
	return nil
}

// After implements SyncHooks.
func (l *Logged[T]) After(caller *CallerContext, result *Result[T]) error {
	logOutcome(caller, l.id, time.Since(l.start), result)
	return nil
}

// ID returns the activation id.
func (l *Logged[T]) ID() string { return l.id }

// AsyncLogged is the asynchronous Logged.
type AsyncLogged[T any] struct {
	id    string
	start time.Time
}

// InitContext assigns the activation id.
func (l *AsyncLogged[T]) InitContext(context.Context, *CallerContext) error {
	l.id = uuid.NewString()
	return nil
}

// Before implements AsyncHooks.
func (l *AsyncLogged[T]) Before(_ context.Context, caller *CallerContext) error {
	l.start = time.Now()
	Logger().Debug("call started", callFields(caller, l.id)...)
	return nil
}

// After implements AsyncHooks.
func (l *AsyncLogged[T]) After(_ context.Context, caller *CallerContext, result *Result[T]) error {
	logOutcome(caller, l.id, time.Since(l.start), result)
	return nil
}

func callFields(caller *CallerContext, id string) []zap.Field {
	fields := []zap.Field{
		zap.String("func", caller.QualifiedName()),
		zap.String("activation", id),
	}
	if caller.IsAsync() {
		fields = append(fields, zap.Bool("async", true))
	}
	return fields
}

func logOutcome[T any](caller *CallerContext, id string, elapsed time.Duration, result *Result[T]) {
	fields := append(callFields(caller, id), zap.Duration("elapsed", elapsed))
	if result.Failed() {
		Logger().Warn("call failed", append(fields, zap.Error(result.Err))...)
		return
	}
	Logger().Debug("call finished", fields...)
}
