package overlay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	res *Result
	err error
}

func startWatcher(t *testing.T, root string, patterns []string) (*Watcher, <-chan outcome) {
	t.Helper()
	builds := make(chan outcome, 16)
	w, err := NewWatcher(newBuilder(t, root), patterns, 50*time.Millisecond, func(res *Result, err error) {
		builds <- outcome{res, err}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, builds
}

func waitBuild(t *testing.T, builds <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-builds:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
		return outcome{}
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"svc/types.go": plain})

	w, builds := startWatcher(t, root, []string{"./..."})
	assert.Equal(t, []string{filepath.Join(root, "svc")}, w.GetWatchedDirs())

	initial := waitBuild(t, builds)
	require.NoError(t, initial.err)
	assert.Equal(t, 0, initial.res.Wrapped())

	path := filepath.Join(root, "svc", "svc.go")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(annotated), 0644))
	}

	next := waitBuild(t, builds)
	require.NoError(t, next.err)
	assert.Equal(t, 2, next.res.Wrapped())

	stats := w.GetStats()
	assert.GreaterOrEqual(t, stats.Rebuilds, 2)
	assert.Equal(t, path, stats.LastEventPath)
	assert.Zero(t, stats.Failures)
}

func TestWatcher_ReportsFailures(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"svc/svc.go": annotated})

	w, builds := startWatcher(t, root, []string{"svc"})
	require.NoError(t, waitBuild(t, builds).err)

	bad := strings.Replace(annotated, "//ctxwrap:wrap Timer", "//ctxwrap:wrap *Timer", 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "svc", "svc.go"), []byte(bad), 0644))

	failed := waitBuild(t, builds)
	require.Error(t, failed.err)
	assert.Contains(t, failed.err.Error(), "pointer type")
	assert.Equal(t, 1, w.GetStats().Failures)
	assert.GreaterOrEqual(t, w.GetStats().Rebuilds, 2)
}

func TestWatcher_IgnoresNonGoFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"svc/svc.go": annotated})

	w, builds := startWatcher(t, root, []string{"svc"})
	waitBuild(t, builds)

	require.NoError(t, os.WriteFile(filepath.Join(root, "svc", "notes.txt"), []byte("x"), 0644))
	select {
	case <-builds:
		t.Fatal("non-Go change triggered a rebuild")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 1, w.GetStats().Rebuilds)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"svc/svc.go": annotated})

	w, builds := startWatcher(t, root, []string{"svc"})
	waitBuild(t, builds)

	w.Stop()
	w.Stop()
	<-w.Done()
}

func TestWatcher_StartFailsOnBadPattern(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(newBuilder(t, root), []string{"missing"}, 0, nil)
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()))
	select {
	case <-w.Done():
	default:
		t.Fatal("event loop still marked running after a failed start")
	}
	w.Stop()
}
