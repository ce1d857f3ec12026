package tsmd

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !strings.HasSuffix(first.Path(), "tsmd.lock") {
		t.Fatalf("unexpected path %q", first.Path())
	}
	if _, err := AcquireLock(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = second.Release()
}

func TestCheckBinaries(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	if err := CheckBinaries("sh"); err != nil {
		t.Fatalf("check: %v", err)
	}
	err := CheckBinaries("sh", "definitely-not-a-real-binary-tsm")
	if err == nil || !strings.Contains(err.Error(), "definitely-not-a-real-binary-tsm") {
		t.Fatalf("expected missing binary error, got %v", err)
	}
}
