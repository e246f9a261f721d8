package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquire_WritesOwner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer lock.Release()

	owner := ReadOwner(lock.Path())
	if owner.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", owner.PID, os.Getpid())
	}
	if !owner.Running {
		t.Error("own process should be reported as running")
	}
	if owner.Started == "" {
		t.Error("expected a start time")
	}
}

func TestAcquire_Conflict(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire error: %v", err)
	}
	defer first.Release()

	_, err = Acquire(dir)
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %v", err)
	}
	if lockErr.Owner.PID != os.Getpid() {
		t.Errorf("conflict owner PID = %d, want %d", lockErr.Owner.PID, os.Getpid())
	}
	if !strings.Contains(err.Error(), LockFileName) {
		t.Errorf("error should name the lock file: %v", err)
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("re-Acquire error: %v", err)
	}
	again.Release()
}

func TestReadOwner(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		pid     int
		started string
	}{
		{"full", "pid=42\nstarted=2024-01-01T00:00:00Z\n", 42, "2024-01-01T00:00:00Z"},
		{"pid only", "pid=7\n", 7, ""},
		{"garbage", "hello", 0, ""},
		{"empty", "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			o := ReadOwner(path)
			if o.PID != tt.pid || o.Started != tt.started {
				t.Errorf("ReadOwner = %+v, want pid=%d started=%q", o, tt.pid, tt.started)
			}
		})
	}
	if o := ReadOwner(filepath.Join(dir, "missing")); o.PID != 0 || o.String() != "unknown process" {
		t.Errorf("missing file owner = %+v", o)
	}
}
