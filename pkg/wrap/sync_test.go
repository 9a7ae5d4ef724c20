package wrap

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	traceMu sync.Mutex
	trace   []string
)

func record(event string) {
	traceMu.Lock()
	defer traceMu.Unlock()
	trace = append(trace, event)
}

func takeTrace() []string {
	traceMu.Lock()
	defer traceMu.Unlock()
	out := trace
	trace = nil
	return out
}

var (
	errInit   = errors.New("init refused")
	errBefore = errors.New("before refused")
	errAfter  = errors.New("after refused")
	errBody   = errors.New("body failed")
)

type tracing struct{}

func (*tracing) Init(*CallerContext) error   { record("init"); return nil }
func (*tracing) Before(*CallerContext) error { record("before"); return nil }
func (*tracing) After(_ *CallerContext, r *Result[int]) error {
	record("after")
	return nil
}

type initFails struct{ tracing }

func (*initFails) Init(*CallerContext) error { record("init"); return errInit }

type beforeFails struct{ tracing }

func (*beforeFails) Before(*CallerContext) error { record("before"); return errBefore }

type afterFails struct{ tracing }

func (*afterFails) After(_ *CallerContext, r *Result[int]) error {
	record("after")
	return errAfter
}

var counted atomic.Int64

// counting increments a shared counter before the body and doubles the value after it.
type counting struct{}

func (*counting) Before(*CallerContext) error {
	counted.Add(1)
	return nil
}

func (*counting) After(_ *CallerContext, r *Result[uint]) error {
	r.Value *= 2
	return nil
}

var answerCaller = NewCaller("answer", InPackage("wrap"))

func answer() uint {
	return Must(RunSync[counting](answerCaller, Body(func() uint {
		return 21
	})))
}

func TestRunSync_CounterAndDouble(t *testing.T) {
	counted.Store(0)

	assert.Equal(t, uint(42), answer())
	assert.Equal(t, int64(1), counted.Load())

	assert.Equal(t, uint(42), answer())
	assert.Equal(t, int64(2), counted.Load(), "each call runs Before once")
}

func TestRunSync_Order(t *testing.T) {
	takeTrace()
	caller := NewCaller("ordered")

	got, err := RunSync[tracing](caller, func() (int, error) {
		record("body")
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, []string{"init", "before", "body", "after"}, takeTrace())
}

func TestRunSync_Faults(t *testing.T) {
	caller := NewCaller("faulty", InPackage("demo"))

	tests := []struct {
		name   string
		run    func(body func() (int, error)) (int, error)
		body   func() (int, error)
		want   []string
		stage  Stage
		target error
	}{
		{
			name:   "init failure stops everything",
			run:    func(b func() (int, error)) (int, error) { return RunSync[initFails](caller, b) },
			want:   []string{"init"},
			stage:  StageInit,
			target: errInit,
		},
		{
			name:   "before failure skips body and after",
			run:    func(b func() (int, error)) (int, error) { return RunSync[beforeFails](caller, b) },
			want:   []string{"init", "before"},
			stage:  StageBefore,
			target: errBefore,
		},
		{
			name:   "after failure masks body error",
			run:    func(b func() (int, error)) (int, error) { return RunSync[afterFails](caller, b) },
			body:   func() (int, error) { record("body"); return 0, errBody },
			want:   []string{"init", "before", "body", "after"},
			stage:  StageAfter,
			target: errAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			takeTrace()
			body := tt.body
			if body == nil {
				body = func() (int, error) { record("body"); return 1, nil }
			}

			_, err := tt.run(body)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.NotErrorIs(t, err, errBody)

			stage, ok := StageOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
			assert.Contains(t, err.Error(), "demo.faulty")
			assert.Equal(t, tt.want, takeTrace())
		})
	}
}

func TestRunSync_AfterObservesBodyError(t *testing.T) {
	var seen error
	factory := func(*CallerContext) (SyncHooks[string], error) {
		return &funcHooks[string]{
			after: func(r *Result[string]) error {
				seen = r.Err
				r.Value = "recovered"
				r.Err = nil
				return nil
			},
		}, nil
	}

	got, err := RunSyncWith[string](NewCaller("lookup"), factory, func() (string, error) {
		return "", errBody
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.ErrorIs(t, seen, errBody)
}

func TestRunSync_PanicSkipsAfter(t *testing.T) {
	takeTrace()
	caller := NewCaller("explode")

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = RunSync[tracing](caller, func() (int, error) {
			record("body")
			panic("boom")
		})
	})
	assert.Equal(t, []string{"init", "before", "body"}, takeTrace())
}

func TestRunSync_NilBody(t *testing.T) {
	_, err := RunSync[Nop[int], *Nop[int], int](NewCaller("nil"), nil)
	assert.ErrorIs(t, err, ErrNilBody)
}

func TestRunSync_IndependentActivations(t *testing.T) {
	caller := NewCaller("parallel")
	var constructed atomic.Int64

	factory := func(*CallerContext) (SyncHooks[int], error) {
		constructed.Add(1)
		h := &stateful{}
		return h, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := RunSyncWith[int](caller, factory, func() (int, error) {
				return n, nil
			})
			if err != nil {
				errs <- err
				return
			}
			if got != n+1 {
				errs <- errors.New("activation observed another call's state")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int64(64), constructed.Load())
}

// stateful counts its own After calls; a context shared between activations
// would see more than one.
type stateful struct {
	NopBefore
	calls int
}

func (s *stateful) After(_ *CallerContext, r *Result[int]) error {
	s.calls++
	if s.calls != 1 {
		return errors.New("context reused across activations")
	}
	r.Value++
	return nil
}

type funcHooks[T any] struct {
	before func() error
	after  func(*Result[T]) error
}

func (h *funcHooks[T]) Before(*CallerContext) error {
	if h.before == nil {
		return nil
	}
	return h.before()
}

func (h *funcHooks[T]) After(_ *CallerContext, r *Result[T]) error {
	if h.after == nil {
		return nil
	}
	return h.after(r)
}

func TestBodyAdapters(t *testing.T) {
	caller := NewCaller("adapters")

	t.Run("void body", func(t *testing.T) {
		ran := false
		MustVoid(RunSync[Nop[Void]](caller, VoidBody(func() { ran = true })))
		assert.True(t, ran)
	})

	t.Run("error body", func(t *testing.T) {
		err := ErrOf(RunSync[Nop[Void]](caller, ErrBody(func() error { return errBody })))
		assert.ErrorIs(t, err, errBody)
	})

	t.Run("must panics with hook fault", func(t *testing.T) {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			assert.ErrorIs(t, err, errBefore)
		}()
		Must(RunSync[beforeFails](caller, Body(func() int { return 1 })))
	})
}
