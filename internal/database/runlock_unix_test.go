//go:build linux || darwin || freebsd

package database

import (
	"path/filepath"
	"testing"
)

func openTestLock(t *testing.T, dbPath string) *RunLock {
	t.Helper()
	l, err := OpenRunLock(dbPath)
	if err != nil {
		t.Fatalf("OpenRunLock failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunLockKeepsRecoveryOutWhileShared(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ingest.db")

	server := openTestLock(t, dbPath)
	ok, err := server.TryExclusive()
	if err != nil || !ok {
		t.Fatalf("first TryExclusive = %v, %v; want true", ok, err)
	}

	other := openTestLock(t, dbPath)
	if ok, err := other.TryExclusive(); err != nil || ok {
		t.Fatalf("TryExclusive during recovery = %v, %v; want false", ok, err)
	}

	if err := server.Share(); err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if ok, err := other.TryExclusive(); err != nil || ok {
		t.Errorf("TryExclusive while runs are live = %v, %v; want false", ok, err)
	}
	if err := other.Share(); err != nil {
		t.Fatalf("shared holds should coexist: %v", err)
	}

	_ = server.Close()
	_ = other.Close()

	next := openTestLock(t, dbPath)
	if ok, err := next.TryExclusive(); err != nil || !ok {
		t.Errorf("TryExclusive after release = %v, %v; want true", ok, err)
	}
}
