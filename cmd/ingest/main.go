package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"hls-ingest/internal/database"
	"hls-ingest/internal/failure"
	"hls-ingest/internal/filesystem"
	"hls-ingest/internal/memory"
	"hls-ingest/internal/pipeline"
	"hls-ingest/internal/startup"
	"hls-ingest/internal/uploads"
	"hls-ingest/internal/validator"
	"hls-ingest/internal/workers"

	"golang.org/x/term"
)

const (
	// Default timeout for database-only commands
	defaultTimeout = 30 * time.Second
	// maxWorkers caps concurrent transcodes started by add
	maxWorkers = 8

	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	defaultList = 50
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, interactive))
}

// pauser blocks new work while memory is under pressure.
type pauser interface {
	WaitIfPaused(ctx context.Context) error
}

type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	jsonOut  bool
	cfg      *startup.Config
	db       *database.Database
	runLock  *database.RunLock
	pipeline *pipeline.Pipeline
	uploads  *uploads.Store
	pauser   pauser

	mu sync.Mutex
}

// result is one line of command output.
type result struct {
	File   string          `json:"file,omitempty"`
	Asset  *database.Asset `json:"asset,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   failure.Kind    `json:"kind,omitempty"`
	Detail string          `json:"diagnostics,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, interactive bool) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command := args[0]
	switch command {
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	case "add", "status", "process", "recover", "list":
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := startup.LoadQuietConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(cfg.Volumes()))

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to open database: %v\n", err)
		fmt.Fprintf(stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", cfg.DatabaseDir)
		return exitFailed
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	runLock, err := database.OpenRunLock(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	defer runLock.Close()

	c := &cli{
		stdout:   stdout,
		stderr:   stderr,
		jsonOut:  !interactive,
		cfg:      cfg,
		db:       db,
		runLock:  runLock,
		pipeline: pipeline.Build(db, cfg),
		uploads:  uploads.New(cfg.UploadDir, cfg.MaxUploadBytes()),
	}

	switch command {
	case "add", "process":
		// Keeps a concurrent recover from rejecting these runs.
		if err := runLock.Share(); err != nil {
			fmt.Fprintf(stderr, "Error: failed to hold run lock: %v\n", err)
			return exitFailed
		}
	}

	switch command {
	case "add":
		return c.add(ctx, args[1:])
	case "status":
		return c.status(ctx, args[1:])
	case "process":
		return c.process(ctx, args[1:])
	case "recover":
		return c.recoverRuns(ctx)
	default:
		return c.list(ctx, args[1:])
	}
}

func (c *cli) add(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	label := fs.String("label", "", "label stored with every added file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(c.stderr, "Usage: ingest add [-label LABEL] FILE...")
		return exitUsage
	}

	if c.pauser == nil {
		monitor := memory.NewMonitor(memory.DefaultConfig())
		monitor.Start()
		defer monitor.Stop()
		c.pauser = monitor
	}

	var (
		failedMu sync.Mutex
		failed   bool
	)
	n := workers.ForEncoder(c.cfg.EncoderThreads, maxWorkers)
	workers.ForEach(ctx, n, files, func(ctx context.Context, path string) {
		r := c.ingestFile(ctx, path, *label)
		if r.Error != "" {
			failedMu.Lock()
			failed = true
			failedMu.Unlock()
		}
		c.emit(r)
	})

	if ctx.Err() != nil || failed {
		return exitFailed
	}
	return exitOK
}

// ingestFile copies path into the upload store and runs the pipeline on it.
// The stored copy is removed unless an asset record now owns it.
func (c *cli) ingestFile(ctx context.Context, path, label string) result {
	r := result{File: path}

	if err := c.pauser.WaitIfPaused(ctx); err != nil {
		return withError(r, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return withError(r, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	stored, err := c.uploads.Save(f, name)
	if errors.Is(err, uploads.ErrTooLarge) {
		err = validator.TooLarge(c.cfg.MaxUploadBytes())
	}
	if err != nil {
		return withError(r, err)
	}

	asset, err := c.pipeline.Ingest(ctx, pipeline.Upload{
		Label: label,
		Name:  name,
		Path:  stored.Path,
		Size:  stored.Size,
		Hash:  stored.Hash,
	})
	if asset == nil || asset.ID == 0 {
		if rmErr := c.uploads.Remove(stored.Path); rmErr != nil {
			fmt.Fprintf(c.stderr, "Warning: failed to remove %s: %v\n", stored.Path, rmErr)
		}
	}

	r.Asset = asset
	if err != nil {
		return withError(r, err)
	}
	return r
}

func (c *cli) status(ctx context.Context, args []string) int {
	id, ok := c.parseID("status", args)
	if !ok {
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	asset, err := c.db.GetAsset(ctx, id)
	if err != nil {
		c.emit(withError(result{}, err))
		return exitFailed
	}
	c.emit(result{Asset: asset})
	return exitOK
}

func (c *cli) process(ctx context.Context, args []string) int {
	id, ok := c.parseID("process", args)
	if !ok {
		return exitUsage
	}

	asset, err := c.pipeline.Process(ctx, id)
	r := result{Asset: asset}
	if err != nil {
		c.emit(withError(r, err))
		return exitFailed
	}
	c.emit(r)
	return exitOK
}

func (c *cli) recoverRuns(ctx context.Context) int {
	var recovered int
	exclusive, err := c.runLock.TryExclusive()
	switch {
	case err != nil:
		err = fmt.Errorf("failed to take run lock: %w", err)
	case !exclusive:
		err = errors.New("another ingest process is running on this database; stop it before recovering")
	default:
		recovered, err = c.pipeline.Recover(ctx)
	}
	if c.jsonOut {
		out := struct {
			Recovered int    `json:"recovered"`
			Error     string `json:"error,omitempty"`
		}{Recovered: recovered}
		if err != nil {
			out.Error = err.Error()
		}
		c.writeJSON(out)
	} else {
		fmt.Fprintf(c.stdout, "Recovered %d interrupted asset(s)\n", recovered)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
		}
	}
	if err != nil {
		return exitFailed
	}
	return exitOK
}

func (c *cli) list(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	state := fs.String("state", "", "only list assets in this state")
	limit := fs.Int("limit", defaultList, "maximum number of assets")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	opts := database.ListOptions{State: database.State(*state), Limit: *limit}
	if opts.State != "" && !opts.State.Valid() {
		fmt.Fprintf(c.stderr, "Unknown state: %s\n", sanitizeCommand(*state))
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	assets, err := c.db.ListAssets(ctx, opts)
	if err != nil {
		c.emit(withError(result{}, err))
		return exitFailed
	}

	if c.jsonOut {
		for i := range assets {
			c.writeJSON(result{Asset: &assets[i]})
		}
		return exitOK
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tSOURCE\tLABEL\tREFERENCE")
	for _, a := range assets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.State, a.SourceName, a.Label, a.ProcessedRef)
	}
	_ = tw.Flush()
	return exitOK
}

func (c *cli) parseID(command string, args []string) (int64, bool) {
	if len(args) != 1 {
		fmt.Fprintf(c.stderr, "Usage: ingest %s ID\n", command)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(c.stderr, "Invalid asset ID: %s\n", sanitizeCommand(args[0]))
		return 0, false
	}
	return id, true
}

func withError(r result, err error) result {
	r.Error = failure.ReasonOf(err)
	r.Kind = failure.KindOf(err)
	var fe *failure.Error
	if errors.As(err, &fe) {
		r.Detail = fe.Diagnostics
	}
	return r
}

// emit writes r as a JSON line or a human readable summary.
func (c *cli) emit(r result) {
	if c.jsonOut {
		c.writeJSON(r)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var prefix string
	if r.File != "" {
		prefix = r.File + ": "
	}
	a := r.Asset

	switch {
	case r.Error != "" && r.Kind == "" && (a == nil || a.ID == 0):
		fmt.Fprintf(c.stdout, "%serror: %s\n", prefix, r.Error)
	case r.Error != "" && (a == nil || a.ID == 0):
		fmt.Fprintf(c.stdout, "%srejected (%s): %s\n", prefix, r.Kind, r.Error)
	case r.Error != "":
		fmt.Fprintf(c.stdout, "%sasset %d %s (%s): %s\n", prefix, a.ID, a.State, kindOrError(r.Kind), r.Error)
	case a.Published():
		fmt.Fprintf(c.stdout, "%sasset %d published %s\n", prefix, a.ID, a.ProcessedRef)
		if a.PosterRef != "" {
			fmt.Fprintf(c.stdout, "  poster:   %s\n", a.PosterRef)
		}
		if a.Duration > 0 {
			fmt.Fprintf(c.stdout, "  duration: %.1fs\n", a.Duration)
		}
	default:
		fmt.Fprintf(c.stdout, "%sasset %d %s", prefix, a.ID, a.State)
		if a.Reason != "" {
			fmt.Fprintf(c.stdout, ": %s", a.Reason)
		}
		fmt.Fprintln(c.stdout)
	}
}

func (c *cli) writeJSON(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.NewEncoder(c.stdout).Encode(v); err != nil {
		fmt.Fprintf(c.stderr, "Error: failed to encode output: %v\n", err)
	}
}

func kindOrError(k failure.Kind) string {
	if k == "" {
		return "error"
	}
	return string(k)
}

// sanitizeCommand returns a safe representation of user input for display.
// Any character that is not alphanumeric, a hyphen or an underscore is
// replaced with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "HLS ingest command line")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: ingest <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  add [-label L] FILE...  - Ingest local video files")
	fmt.Fprintln(w, "  status ID               - Show one asset")
	fmt.Fprintln(w, "  process ID              - Process an asset still in state created")
	fmt.Fprintln(w, "  list [-state S]         - List assets, newest first")
	fmt.Fprintln(w, "  recover                 - Reject runs interrupted by a crash")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Output is JSON, one object per line, when stdout is not a terminal.")
	fmt.Fprintln(w, "Configuration is read from the same environment as the server.")
}
