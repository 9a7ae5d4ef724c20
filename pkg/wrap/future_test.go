package wrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_Await(t *testing.T) {
	release := make(chan struct{})
	f := Go[NopAsync[int]](context.Background(), NewCaller("slow", Async()), func() (int, error) {
		<-release
		return 5, nil
	})

	select {
	case <-f.Done():
		t.Fatal("future finished before the body was released")
	default:
	}

	close(release)
	got, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestFuture_AwaitTimeout(t *testing.T) {
	release := make(chan struct{})
	f := Go[NopAsync[int]](context.Background(), NewCaller("stuck", Async()), func() (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-f.Done()
}

func TestFuture_PanicReraised(t *testing.T) {
	f := Go[NopAsync[int]](context.Background(), NewCaller("crash", Async()), func() (int, error) {
		panic("worker crashed")
	})

	<-f.Done()
	assert.PanicsWithValue(t, "worker crashed", func() {
		_, _ = f.Await(context.Background())
	})
}

func TestFuture_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := Go[NopAsync[string]](ctx, NewCaller("never", Async()), func() (string, error) {
		return "ran", nil
	})

	got, err := f.Await(context.Background())
	assert.Empty(t, got)
	assert.ErrorIs(t, err, ErrCancelled)
}
