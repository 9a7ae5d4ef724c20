// Package build assembles the environment and extra flags for the go command
// that `ctxwrap go` runs.
//
// The environment is the current process environment with the configured
// go.env entries applied on top. When the environment gives the go command no
// way to find a build cache, a GOCACHE is derived so the subprocess does not
// fail with "GOCACHE is not defined".
package build

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ctxwrap/internal/config"
	"ctxwrap/internal/logging"
)

// Env returns the environment for the go command.
func Env(cfg config.GoConfig) []string {
	env := os.Environ()

	keys := make([]string, 0, len(cfg.Env))
	for key := range cfg.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = setEnvKey(env, key, cfg.Env[key])
		logging.OverlayDebug("go env %s=%s", key, cfg.Env[key])
	}

	if !hasEnvKey(env, "GOCACHE") && !hasCacheRoot(env) {
		if gocache := deriveGOCACHE(); gocache != "" {
			env = append(env, "GOCACHE="+gocache)
			logging.OverlayDebug("derived GOCACHE: %s", gocache)
		}
	}
	return env
}

// Args inserts the configured flags after the subcommand in args.
func Args(cfg config.GoConfig, args []string) []string {
	if len(cfg.Flags) == 0 || len(args) == 0 {
		return args
	}
	out := make([]string, 0, len(args)+len(cfg.Flags))
	out = append(out, args[0])
	out = append(out, cfg.Flags...)
	return append(out, args[1:]...)
}

// hasCacheRoot reports whether the go command can compute its default cache
// directory from env.
func hasCacheRoot(env []string) bool {
	for _, key := range []string{"XDG_CACHE_HOME", "HOME", "LOCALAPPDATA"} {
		if hasEnvKey(env, key) {
			return true
		}
	}
	return false
}

// deriveGOCACHE picks a cache directory under the first temp directory set.
func deriveGOCACHE() string {
	for _, key := range []string{"TMPDIR", "TEMP", "TMP"} {
		if dir := os.Getenv(key); dir != "" {
			return filepath.Join(dir, "go-build")
		}
	}
	return ""
}

// hasEnvKey checks if an environment key is set to a non-empty value.
func hasEnvKey(env []string, key string) bool {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) && len(e) > len(prefix) {
			return true
		}
	}
	return false
}

// setEnvKey sets or replaces an environment variable.
func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	out := env[:0:0]
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return append(out, prefix+value)
}
