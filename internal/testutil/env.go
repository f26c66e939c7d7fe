// Package testutil isolates cbtap tests from the real user environment.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env lists the directories SetupTestEnv created.
type Env struct {
	Prefix string
	Cache  string
	Home   string
}

// SetupTestEnv points every CBTAP_* path at a fresh temp directory and
// clears settings that would change behavior between machines. Cleanup is
// handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	tmpDir := t.TempDir()
	e := Env{
		Prefix: filepath.Join(tmpDir, "prefix"),
		Cache:  filepath.Join(tmpDir, "cache"),
		Home:   filepath.Join(tmpDir, "home"),
	}

	t.Setenv("HOME", e.Home)
	t.Setenv("CBTAP_PREFIX", e.Prefix)
	t.Setenv("CBTAP_CACHE", e.Cache)
	t.Setenv("CBTAP_LIBC", "")
	t.Setenv("CBTAP_LOG_LEVEL", "error")
	t.Setenv("CBTAP_LOG_FORMAT", "text")
	t.Setenv("CBTAP_RETRIES", "0")

	for _, dir := range []string{e.Prefix, e.Cache, e.Home} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return e
}
