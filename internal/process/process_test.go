package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"hls-ingest/internal/failure"
)

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

// processAlive reports whether pid is running. Zombies count as dead.
func processAlive(t *testing.T, pid int) bool {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// The state field follows the parenthesized command name.
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 || i+2 >= len(s) {
		return false
	}
	return s[i+2] != 'Z' && s[i+2] != 'X'
}

func waitDead(t *testing.T, pid int) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(t, pid) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestRunSuccess(t *testing.T) {
	script := writeScript(t, t.TempDir(), "ok.sh", `echo "out:$1"; echo "err" >&2`)

	res, err := NewExecRunner().Run(context.Background(), Command{Path: script, Args: []string{"hello"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Succeeded() {
		t.Errorf("expected success, got exit %d timedOut=%v", res.ExitCode, res.TimedOut)
	}
	if strings.TrimSpace(res.Stdout) != "out:hello" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.Pid <= 0 {
		t.Errorf("Pid = %d, want positive", res.Pid)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail.sh", `echo "bad input" >&2; exit 3`)

	res, err := NewExecRunner().Run(context.Background(), Command{Path: script, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Succeeded() {
		t.Error("Succeeded() should be false")
	}
	if !strings.Contains(res.Stderr, "bad input") {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("process inspection requires /proc")
	}
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	script := writeScript(t, dir, "hang.sh", `sleep 30 &
echo $! > "`+pidFile+`"
wait`)

	start := time.Now()
	res, err := NewExecRunner().Run(context.Background(), Command{Path: script, Timeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("timeout should be reported on the result, got error: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run took %v after a 300ms timeout", elapsed)
	}
	if !waitDead(t, res.Pid) {
		t.Errorf("supervised process %d still running", res.Pid)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("child pid not recorded: %v", err)
	}
	childPid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("bad child pid: %v", err)
	}
	if !waitDead(t, childPid) {
		t.Errorf("grandchild %d outlived its supervisor", childPid)
	}
}

func TestRunParentCancel(t *testing.T) {
	script := writeScript(t, t.TempDir(), "hang.sh", `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := NewExecRunner().Run(ctx, Command{Path: script, Timeout: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.TimedOut {
		t.Errorf("cancellation should not be reported as a timeout: %+v", res)
	}
}

func TestRunMissingTool(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")})
	if !errors.Is(err, failure.ErrToolUnavailable) {
		t.Fatalf("expected tool_unavailable, got %v", err)
	}
}

func TestRunOutputIsBounded(t *testing.T) {
	script := writeScript(t, t.TempDir(), "noisy.sh", `i=0
while [ $i -lt 200 ]; do echo "line $i"; i=$((i+1)); done
echo LAST`)

	r := &ExecRunner{OutputLimit: 64}
	res, err := r.Run(context.Background(), Command{Path: script, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Stdout) > 64 {
		t.Errorf("Stdout length = %d, want <= 64", len(res.Stdout))
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), "LAST") {
		t.Errorf("expected tail of output, got %q", res.Stdout)
	}
}

func TestRunStderrTruncationIsFlagged(t *testing.T) {
	script := writeScript(t, t.TempDir(), "noisy.sh", `i=0
while [ $i -lt 200 ]; do echo "frame $i" >&2; i=$((i+1)); done
echo "conversion failed" >&2
exit 1`)

	r := &ExecRunner{OutputLimit: 64}
	res, err := r.Run(context.Background(), Command{Path: script, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.StderrTruncated {
		t.Error("expected StderrTruncated")
	}
	diag := res.Diagnostics()
	if !strings.HasPrefix(diag, "...") || !strings.Contains(diag, "conversion failed") {
		t.Errorf("Diagnostics() = %q", diag)
	}

	quiet := writeScript(t, t.TempDir(), "quiet.sh", `echo "short" >&2; exit 1`)
	res, err = r.Run(context.Background(), Command{Path: quiet, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.StderrTruncated || strings.HasPrefix(res.Diagnostics(), "...") {
		t.Errorf("short stderr marked truncated: %q", res.Diagnostics())
	}
}

func TestRunNormalExitLeavesGroupAlone(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	// The background job outlives the leader; a clean exit must not signal
	// the group, whose id may already belong to someone else.
	script := writeScript(t, dir, "detach.sh", `(sleep 0.3; touch "`+marker+`") >/dev/null 2>&1 &
exit 0`)

	res, err := NewExecRunner().Run(context.Background(), Command{Path: script, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("expected success, got %+v", res)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("background job was killed after a clean exit")
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(5)
	_, _ = tb.Write([]byte("abc"))
	if tb.Truncated() {
		t.Error("should not be truncated yet")
	}
	_, _ = tb.Write([]byte("def"))
	if got := tb.String(); got != "bcdef" {
		t.Errorf("String() = %q, want bcdef", got)
	}
	_, _ = tb.Write([]byte("0123456789"))
	if got := tb.String(); got != "56789" {
		t.Errorf("String() = %q, want 56789", got)
	}
	if !tb.Truncated() {
		t.Error("expected Truncated")
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("configured absolute path", func(t *testing.T) {
		got, err := Resolve(tool, "ffprobe")
		if err != nil || got != tool {
			t.Errorf("Resolve = %q, %v", got, err)
		}
	})

	t.Run("configured path missing", func(t *testing.T) {
		_, err := Resolve(filepath.Join(dir, "missing"), "ffprobe")
		if !errors.Is(err, failure.ErrToolUnavailable) {
			t.Errorf("expected tool_unavailable, got %v", err)
		}
	})

	t.Run("configured path is directory", func(t *testing.T) {
		_, err := Resolve(dir, "ffprobe")
		if !errors.Is(err, failure.ErrToolUnavailable) {
			t.Errorf("expected tool_unavailable, got %v", err)
		}
	})

	t.Run("PATH lookup", func(t *testing.T) {
		t.Setenv("PATH", dir)
		got, err := Resolve("", "ffprobe")
		if err != nil || got != tool {
			t.Errorf("Resolve = %q, %v", got, err)
		}
	})

	t.Run("not in PATH", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		_, err := Resolve("", "ffprobe")
		if !errors.Is(err, failure.ErrToolUnavailable) {
			t.Errorf("expected tool_unavailable, got %v", err)
		}
	})
}
