package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))
	t.Cleanup(func() { SetBase(nil) })
	return logs
}

func TestCategoriesAreNamedLoggers(t *testing.T) {
	logs := observed(t)

	Transform("rewrote %d functions", 3)
	OverlayDebug("wrote %s", "overlay.json")
	WatchError("watch failed: %v", "boom")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "transform", entries[0].LoggerName)
	assert.Equal(t, "rewrote 3 functions", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "overlay", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestWithAddsFields(t *testing.T) {
	logs := observed(t)

	Get(CategoryOverlay).With("pkg", "demo").Info("rewriting")

	entry := logs.All()[0]
	assert.Equal(t, "demo", entry.ContextMap()["pkg"])
}

func TestDisabledCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	install(zap.New(core), map[string]bool{"watch": false})
	t.Cleanup(func() { SetBase(nil) })

	assert.False(t, IsCategoryEnabled(CategoryWatch))
	assert.True(t, IsCategoryEnabled(CategoryTransform), "unlisted categories stay enabled")

	Watch("dropped")
	Transform("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctxwrap.log")
	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", File: path}))
	t.Cleanup(func() { SetBase(nil) })

	Boot("hello from %s", "test")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"boot"`)
	assert.Contains(t, string(data), "hello from test")
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"level", Config{Level: "loud"}, "loud"},
		{"format", Config{Format: "xml"}, "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Initialize(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConcurrentGet(t *testing.T) {
	observed(t)

	var wg sync.WaitGroup
	got := make([]*Logger, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get(CategoryTransform)
		}(i)
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestTimerThreshold(t *testing.T) {
	logs := observed(t)

	timer := StartTimer(CategoryOverlay, "build")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.True(t, strings.HasPrefix(warn[0].Message, "build took"))
}
