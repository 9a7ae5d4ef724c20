package build

import (
	"path/filepath"
	"testing"

	"ctxwrap/internal/config"

	"github.com/stretchr/testify/assert"
)

func clearEnvVars(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func lookup(env []string, key string) (string, int) {
	var value string
	n := 0
	for _, e := range env {
		if len(e) > len(key) && e[:len(key)+1] == key+"=" {
			value = e[len(key)+1:]
			n++
		}
	}
	return value, n
}

func TestEnv_AppliesConfig(t *testing.T) {
	t.Setenv("CGO_ENABLED", "1")

	env := Env(config.GoConfig{Env: map[string]string{
		"CGO_ENABLED": "0",
		"GOFLAGS":     "-mod=mod",
	}})

	value, n := lookup(env, "CGO_ENABLED")
	assert.Equal(t, "0", value)
	assert.Equal(t, 1, n, "configured value replaces the inherited one")

	value, _ = lookup(env, "GOFLAGS")
	assert.Equal(t, "-mod=mod", value)
}

func TestEnv_DerivesGOCACHE(t *testing.T) {
	keys := []string{"GOCACHE", "XDG_CACHE_HOME", "HOME", "LOCALAPPDATA", "TMPDIR", "TEMP", "TMP"}

	t.Run("home is enough", func(t *testing.T) {
		clearEnvVars(t, keys...)
		t.Setenv("HOME", t.TempDir())
		_, n := lookup(Env(config.GoConfig{}), "GOCACHE")
		assert.Zero(t, n)
	})

	t.Run("falls back to temp", func(t *testing.T) {
		clearEnvVars(t, keys...)
		tmp := t.TempDir()
		t.Setenv("TMPDIR", tmp)
		value, _ := lookup(Env(config.GoConfig{}), "GOCACHE")
		assert.Equal(t, filepath.Join(tmp, "go-build"), value)
	})

	t.Run("nothing to derive from", func(t *testing.T) {
		clearEnvVars(t, keys...)
		value, _ := lookup(Env(config.GoConfig{}), "GOCACHE")
		assert.Empty(t, value)
	})

	t.Run("configured cache wins", func(t *testing.T) {
		clearEnvVars(t, keys...)
		t.Setenv("TMPDIR", t.TempDir())
		value, n := lookup(Env(config.GoConfig{Env: map[string]string{"GOCACHE": "/cache"}}), "GOCACHE")
		assert.Equal(t, "/cache", value)
		assert.Equal(t, 1, n)
	})
}

func TestArgs(t *testing.T) {
	cfg := config.GoConfig{Flags: []string{"-race", "-tags=integration"}}

	assert.Equal(t,
		[]string{"test", "-race", "-tags=integration", "-run", "X", "./..."},
		Args(cfg, []string{"test", "-run", "X", "./..."}))
	assert.Equal(t, []string{"build"}, Args(config.GoConfig{}, []string{"build"}))
	assert.Empty(t, Args(cfg, nil))
}
