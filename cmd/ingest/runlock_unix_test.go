//go:build linux || darwin || freebsd

package main

import (
	"strings"
	"testing"

	"hls-ingest/internal/database"
	"hls-ingest/internal/startup"
)

func TestRecoverRefusesWhileAnotherProcessRuns(t *testing.T) {
	testEnv(t)
	cfg, err := startup.LoadQuietConfig()
	if err != nil {
		t.Fatal(err)
	}

	// Stands in for a server holding the lock while it serves uploads.
	server, err := database.OpenRunLock(cfg.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	if err := server.Share(); err != nil {
		t.Fatal(err)
	}

	code, out, _ := runCLI(t, false, "recover")
	if code != exitFailed {
		t.Fatalf("recover exit = %d, want %d", code, exitFailed)
	}
	if !strings.Contains(out, `"recovered":0`) || !strings.Contains(out, "another ingest process") {
		t.Errorf("recover output = %q", out)
	}

	// Listing does not need the lock.
	if code, _, _ := runCLI(t, false, "list"); code != exitOK {
		t.Errorf("list exit = %d while the lock is shared", code)
	}

	_ = server.Close()
	if code, _, _ := runCLI(t, false, "recover"); code != exitOK {
		t.Errorf("recover exit = %d after the lock was released", code)
	}
}
