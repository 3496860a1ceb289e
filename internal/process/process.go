// Package process runs external tools as supervised child processes.
//
// A Runner starts one command, waits for it under a wall-clock budget and
// reports its exit status with a bounded tail of its output. On timeout or
// cancellation the child's whole process group is killed, so no encoder or
// helper it spawned outlives the call.
package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"hls-ingest/internal/failure"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/metrics"
)

const (
	// DefaultOutputLimit is the number of trailing bytes kept per stream.
	DefaultOutputLimit = 64 * 1024
	// DefaultWaitDelay bounds how long Wait blocks on output pipes after the
	// process has been killed.
	DefaultWaitDelay = 5 * time.Second
)

var log = logging.For("process")

// Command describes one invocation.
type Command struct {
	Path string
	Args []string
	// Timeout is the wall-clock budget. Zero means no timeout beyond ctx.
	Timeout time.Duration
	// Nice lowers the child's scheduling priority when positive.
	Nice int
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result is the outcome of a command that was started.
type Result struct {
	Pid      int
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Elapsed  time.Duration
	// StderrTruncated is set when the head of stderr was discarded.
	StderrTruncated bool
}

// Succeeded reports whether the command exited 0 within its budget.
func (r *Result) Succeeded() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Diagnostics returns the captured stderr, prefixed with "..." when its
// head was discarded.
func (r *Result) Diagnostics() string {
	if r.StderrTruncated {
		return "..." + r.Stderr
	}
	return r.Stderr
}

// Runner runs a command to completion.
//
// A non-nil error means the command could not be started (tool unavailable)
// or the caller's context was canceled. A timeout or non-zero exit is not an
// error; it is reported on the Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	OutputLimit int
	WaitDelay   time.Duration
}

// NewExecRunner creates an ExecRunner with default limits.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		OutputLimit: DefaultOutputLimit,
		WaitDelay:   DefaultWaitDelay,
	}
}

// Run starts c and waits for it to exit, time out, or be canceled.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	limit := r.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	stdout := newTailBuffer(limit)
	stderr := newTailBuffer(limit)

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	setProcessGroup(cmd)

	log.Debug("starting: %s", c)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, failure.Wrap(failure.KindToolUnavailable, err, "cannot execute %s", c.Path)
		}
		return nil, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	pid := cmd.Process.Pid
	if c.Nice > 0 {
		if err := lowerPriority(pid, c.Nice); err != nil {
			log.Warn("failed to lower priority of pid %d: %v", pid, err)
		}
	}

	// The group is only signalled through cmd.Cancel. Once Wait has reaped
	// the leader its pgid may be reused.
	waitErr := cmd.Wait()

	res := &Result{
		Pid:             pid,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StderrTruncated: stderr.Truncated(),
		Elapsed:         time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr == nil {
		return res, nil
	}

	if runCtx.Err() != nil {
		if ctx.Err() != nil {
			metrics.ProcessKillsTotal.WithLabelValues("canceled").Inc()
			log.Warn("pid %d killed: %v", pid, ctx.Err())
			return res, ctx.Err()
		}
		res.TimedOut = true
		metrics.ProcessKillsTotal.WithLabelValues("timeout").Inc()
		log.Warn("pid %d killed after exceeding %v", pid, c.Timeout)
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return res, nil
	}
	return res, fmt.Errorf("waiting for %s: %w", c.Path, waitErr)
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// Resolve locates an external tool. A configured value containing a path
// separator must name an existing regular file; any other value (or the
// default name when configured is empty) is searched for in PATH.
func Resolve(configured, name string) (string, error) {
	if configured != "" {
		if strings.ContainsRune(configured, os.PathSeparator) {
			info, err := os.Stat(configured)
			if err != nil {
				return "", failure.Wrap(failure.KindToolUnavailable, err, "%s not found at %s", name, configured)
			}
			if info.IsDir() {
				return "", failure.New(failure.KindToolUnavailable, "%s path %s is a directory", name, configured)
			}
			return configured, nil
		}
		name = configured
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", failure.Wrap(failure.KindToolUnavailable, err, "%s not found in PATH", name)
	}
	return path, nil
}
