package install

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireLock(t *testing.T) {
	t.Run("creates lock file", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		data, err := os.ReadFile(filepath.Join(dir, "install.lock"))
		if err != nil {
			t.Fatalf("lock file not created: %v", err)
		}
		if !strings.Contains(string(data), "pid=") {
			t.Errorf("lock data missing pid: %q", data)
		}
	})

	t.Run("prevents concurrent locks", func(t *testing.T) {
		dir := t.TempDir()

		lock1, err := AcquireLock(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		defer lock1.Release()

		_, err = AcquireLock(context.Background(), dir, nil)
		if err != ErrLockExists {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := AcquireLock(ctx, t.TempDir(), nil); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "var", "cbtap")

		lock, err := AcquireLock(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()
	})

	t.Run("replaces stale lock", func(t *testing.T) {
		dir := t.TempDir()
		stale, err := AcquireLock(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		stale.file.Close()

		later := FixedClock{Time: time.Now().Add(StaleLockThreshold + time.Minute)}
		lock, err := AcquireLock(context.Background(), dir, later)
		if err != nil {
			t.Fatalf("expected stale lock to be replaced, got %v", err)
		}
		defer lock.Release()
	})

	t.Run("keeps fresh lock", func(t *testing.T) {
		dir := t.TempDir()
		held, err := AcquireLock(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer held.Release()

		soon := FixedClock{Time: time.Now().Add(time.Minute)}
		if _, err := AcquireLock(context.Background(), dir, soon); err != ErrLockExists {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})
}

func TestLockRelease(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "install.lock")); !os.IsNotExist(err) {
		t.Error("lock file should be removed")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}

	lock2, err := AcquireLock(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	lock2.Release()
}
