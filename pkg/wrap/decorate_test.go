package wrap

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doubling struct{ NopBefore }

func (*doubling) After(_ *CallerContext, r *Result[int]) error {
	r.Value *= 2
	return nil
}

type asyncDoubling struct{ NopAsyncBefore }

func (*asyncDoubling) After(_ context.Context, _ *CallerContext, r *Result[int]) error {
	r.Value *= 2
	return nil
}

func TestFunc(t *testing.T) {
	fn := Func[doubling]("four", func() (int, error) { return 4, nil })
	got, err := fn()
	require.NoError(t, err)
	assert.Equal(t, 8, got)
}

func TestFunc1(t *testing.T) {
	parse := Func1[doubling]("parse", strconv.Atoi, InPackage("strconv"))

	got, err := parse("21")
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = parse("x")
	var numErr *strconv.NumError
	assert.ErrorAs(t, err, &numErr)
}

func TestDecorate(t *testing.T) {
	var names []string
	factory := func(c *CallerContext) (SyncHooks[int], error) {
		names = append(names, c.QualifiedName())
		return &Nop[int]{}, nil
	}

	fn := Decorate[int]("count", factory, func() (int, error) { return 1, nil }, InPackage("demo"))
	_, _ = fn()
	_, _ = fn()

	assert.Equal(t, []string{"demo.count", "demo.count"}, names)
}

func TestAsyncFunc(t *testing.T) {
	fetch := AsyncFunc[asyncDoubling]("fetch", func(ctx context.Context) (int, error) {
		return 10, ctx.Err()
	})

	got, err := fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetch(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestAsyncFunc1(t *testing.T) {
	square := AsyncFunc1[asyncDoubling]("square", func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	got, err := square(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 18, got)
}

func TestDecorateAsync_MarksCallerAsync(t *testing.T) {
	opts := []CallerOption{InPackage("demo")}
	var seen *CallerContext
	factory := func(_ context.Context, c *CallerContext) (AsyncHooks[int], error) {
		seen = c
		return &NopAsync[int]{}, nil
	}

	fn := DecorateAsync[int]("poll", factory, func(context.Context) (int, error) {
		return 0, errors.New("empty")
	}, opts...)
	_, err := fn(context.Background())

	assert.EqualError(t, err, "empty")
	require.NotNil(t, seen)
	assert.True(t, seen.IsAsync())
	assert.Len(t, opts, 1, "caller options slice must not be extended in place")
}
