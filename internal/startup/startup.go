package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"hls-ingest/internal/filesystem"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/poster"
	"hls-ingest/internal/process"
	"hls-ingest/internal/publisher"
	"hls-ingest/internal/transcoder"
	"hls-ingest/internal/validator"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaRoot        string
	UploadDir        string
	OutputRoot       string
	PublicPathPrefix string
	PublicBaseURL    string
	DatabaseDir      string
	FFprobePath      string
	FFmpegPath       string
	Port             string
	MetricsPort      string

	MaxVideoSizeMB    int
	MaxVideoDuration  time.Duration
	ProcessingTimeout time.Duration
	ProbeTimeout      time.Duration

	EncoderThreads     int
	EncoderPreset      string
	EncoderCRF         int
	EncoderMaxrateKbps int
	EncoderNice        int

	NormalizePermissions bool
	PosterEnabled        bool
	PosterWidth          int
	LogStaticFiles       bool
	LogHealthChecks      bool
	MetricsEnabled       bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads configuration for the server, printing the banner and
// directory diagnostics as it goes.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return loadConfig(true)
}

// LoadQuietConfig loads the same configuration without the banner. Used by
// command line tools whose stdout is program output.
func LoadQuietConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(verbose bool) (*Config, error) {
	loadDotEnv()

	section := func(title string) {
		if !verbose {
			return
		}
		logging.Info("")
		logging.Info("------------------------------------------------------------")
		logging.Info("%s", title)
		logging.Info("------------------------------------------------------------")
	}
	info := func(format string, args ...interface{}) {
		if verbose {
			logging.Info(format, args...)
		}
	}

	section("CONFIGURATION")

	mediaRoot := getEnv("MEDIA_ROOT", "/media")
	cfg := &Config{
		MediaRoot:            mediaRoot,
		UploadDir:            getEnv("UPLOAD_DIR", filepath.Join(mediaRoot, "video")),
		OutputRoot:           getEnv("OUTPUT_ROOT", filepath.Join(mediaRoot, "processed")),
		PublicPathPrefix:     getEnv("PUBLIC_PATH_PREFIX", "processed"),
		PublicBaseURL:        getEnv("PUBLIC_BASE_URL", ""),
		DatabaseDir:          getEnv("DATABASE_DIR", "/database"),
		FFprobePath:          getEnv("FFPROBE_PATH", ""),
		FFmpegPath:           getEnv("FFMPEG_PATH", ""),
		Port:                 getEnv("PORT", "8080"),
		MetricsPort:          getEnv("METRICS_PORT", "9090"),
		MaxVideoSizeMB:       getEnvInt("MAX_VIDEO_SIZE_MB", 100),
		MaxVideoDuration:     time.Duration(getEnvInt("MAX_VIDEO_DURATION", 600)) * time.Second,
		ProcessingTimeout:    time.Duration(getEnvInt("PROCESSING_TIMEOUT", 300)) * time.Second,
		ProbeTimeout:         time.Duration(getEnvInt("PROBE_TIMEOUT", 30)) * time.Second,
		EncoderThreads:       getEnvInt("ENCODER_THREADS", 2),
		EncoderPreset:        getEnv("ENCODER_PRESET", "veryfast"),
		EncoderCRF:           getEnvInt("ENCODER_CRF", 27),
		EncoderMaxrateKbps:   getEnvInt("ENCODER_MAXRATE_KBPS", 2000),
		EncoderNice:          getEnvInt("ENCODER_NICE", 10),
		NormalizePermissions: getEnvBool("NORMALIZE_PERMISSIONS", true),
		PosterEnabled:        getEnvBool("POSTER_ENABLED", true),
		PosterWidth:          getEnvInt("POSTER_WIDTH", poster.DefaultWidth),
		LogStaticFiles:       getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks:      getEnvBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
	}

	info("  MEDIA_ROOT:            %s", cfg.MediaRoot)
	info("  UPLOAD_DIR:            %s", cfg.UploadDir)
	info("  OUTPUT_ROOT:           %s", cfg.OutputRoot)
	info("  PUBLIC_PATH_PREFIX:    %s", cfg.PublicPathPrefix)
	info("  PUBLIC_BASE_URL:       %s", valueOr(cfg.PublicBaseURL, "(relative)"))
	info("  DATABASE_DIR:          %s", cfg.DatabaseDir)
	info("  FFPROBE_PATH:          %s", valueOr(cfg.FFprobePath, "(PATH)"))
	info("  FFMPEG_PATH:           %s", valueOr(cfg.FFmpegPath, "(PATH)"))
	info("  MAX_VIDEO_SIZE_MB:     %d", cfg.MaxVideoSizeMB)
	info("  MAX_VIDEO_DURATION:    %v", cfg.MaxVideoDuration)
	info("  PROCESSING_TIMEOUT:    %v", cfg.ProcessingTimeout)
	info("  PROBE_TIMEOUT:         %v", cfg.ProbeTimeout)
	info("  ENCODER:               %s crf=%d maxrate=%dk threads=%d nice=%d",
		cfg.EncoderPreset, cfg.EncoderCRF, cfg.EncoderMaxrateKbps, cfg.EncoderThreads, cfg.EncoderNice)
	info("  NORMALIZE_PERMISSIONS: %v", cfg.NormalizePermissions)
	info("  POSTER_ENABLED:        %v (width %d)", cfg.PosterEnabled, cfg.PosterWidth)
	info("  PORT:                  %s", cfg.Port)
	info("  METRICS_PORT:          %s", cfg.MetricsPort)
	info("  METRICS_ENABLED:       %v", cfg.MetricsEnabled)
	info("  LOG_LEVEL:             %s", logging.GetLevel())

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	section("DIRECTORY SETUP")

	var err error
	for _, dir := range []struct {
		name string
		path *string
	}{
		{"media", &cfg.MediaRoot},
		{"upload", &cfg.UploadDir},
		{"output", &cfg.OutputRoot},
		{"database", &cfg.DatabaseDir},
	} {
		*dir.path, err = filepath.Abs(*dir.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", dir.name, err)
		}
		info("  %-8s directory (absolute): %s", dir.name, *dir.path)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "ingest.db")

	// Uploads, output and the database must all be writable; the media
	// root itself only has to exist.
	if err := ensureDirectory(cfg.MediaRoot, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}
	for _, dir := range []struct{ name, path string }{
		{"upload", cfg.UploadDir},
		{"output", cfg.OutputRoot},
		{"database", cfg.DatabaseDir},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		logging.Debug("  Testing %s directory write access...", dir.name)
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		info("  [OK] %s directory is writable", dir.name)
	}

	if verbose {
		logging.Info("")
		logging.Info("  Feature availability:")
		logging.Info("    Database:    ENABLED (required)")
		logging.Info("    Posters:     %s", enabledString(cfg.PosterEnabled))
		logging.Info("    Metrics:     %s", enabledString(cfg.MetricsEnabled))
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	positive := []struct {
		key   string
		value int64
	}{
		{"MAX_VIDEO_SIZE_MB", int64(c.MaxVideoSizeMB)},
		{"MAX_VIDEO_DURATION", int64(c.MaxVideoDuration)},
		{"PROCESSING_TIMEOUT", int64(c.ProcessingTimeout)},
		{"PROBE_TIMEOUT", int64(c.ProbeTimeout)},
		{"ENCODER_THREADS", int64(c.EncoderThreads)},
		{"ENCODER_MAXRATE_KBPS", int64(c.EncoderMaxrateKbps)},
		{"POSTER_WIDTH", int64(c.PosterWidth)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.key))
		}
	}
	if c.EncoderCRF < 0 || c.EncoderCRF > 51 {
		errs = append(errs, fmt.Errorf("ENCODER_CRF must be between 0 and 51, got %d", c.EncoderCRF))
	}
	if c.EncoderNice < 0 || c.EncoderNice > 19 {
		errs = append(errs, fmt.Errorf("ENCODER_NICE must be between 0 and 19, got %d", c.EncoderNice))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes is the accepted upload size.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxVideoSizeMB) * 1024 * 1024
}

// ValidatorPolicy returns the upload acceptance limits.
func (c *Config) ValidatorPolicy() validator.Policy {
	return validator.Policy{MaxBytes: c.MaxUploadBytes(), MaxDuration: c.MaxVideoDuration}
}

// TranscoderConfig returns the encoder configuration.
func (c *Config) TranscoderConfig() transcoder.Config {
	profile := transcoder.DefaultProfile()
	profile.Threads = c.EncoderThreads
	profile.Preset = c.EncoderPreset
	profile.CRF = c.EncoderCRF
	profile.MaxrateKbps = c.EncoderMaxrateKbps
	return transcoder.Config{
		FFmpegPath: c.FFmpegPath,
		Timeout:    c.ProcessingTimeout,
		Nice:       c.EncoderNice,
		Profile:    profile,
	}
}

// PublisherConfig returns how published references are built.
func (c *Config) PublisherConfig() publisher.Config {
	return publisher.Config{
		PathPrefix:           c.PublicPathPrefix,
		BaseURL:              c.PublicBaseURL,
		NormalizePermissions: c.NormalizePermissions,
		Retry:                filesystem.DefaultRetryConfig(),
	}
}

// PosterConfig returns the poster generator configuration.
func (c *Config) PosterConfig() poster.Config {
	return poster.Config{FFmpegPath: c.FFmpegPath, Width: c.PosterWidth}
}

// Volumes maps configured roots to metric labels for filesystem retries.
func (c *Config) Volumes() map[string]string {
	return map[string]string{
		c.UploadDir:   "media",
		c.OutputRoot:  "output",
		c.DatabaseDir: "database",
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// loadDotEnv reads .env from the working directory, or the file named by
// ENV_FILE. Variables already set in the environment win.
func loadDotEnv() {
	path := getEnv("ENV_FILE", ".env")
	err := godotenv.Load(path)
	switch {
	case err == nil:
		logging.Debug("  Loaded environment from %s", path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		logging.Warn("  Failed to load %s: %v", path, err)
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogToolsInit logs the external tool check. Missing tools do not stop the
// server: uploads fail with tool_unavailable until they are installed.
func LogToolsInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TOOL CHECK")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []struct{ configured, name string }{
		{cfg.FFmpegPath, "ffmpeg"},
		{cfg.FFprobePath, "ffprobe"},
	} {
		path, version, err := checkTool(tool.configured, tool.name)
		if err != nil {
			logging.Warn("  %s check failed: %v", tool.name, err)
			if tool.name == "ffprobe" {
				logging.Warn("  Duration limits will not be enforced")
			} else {
				logging.Warn("  Uploads will be rejected until ffmpeg is available")
			}
			continue
		}
		logging.Info("  [OK] %s: %s", tool.name, path)
		if version != "" {
			logging.Debug("       %s", version)
		}
	}
}

// LogRecovery logs the startup sweep of interrupted runs.
func LogRecovery(recovered int, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RECOVERY")
	logging.Info("------------------------------------------------------------")
	if err != nil {
		logging.Warn("  Recovery finished with errors: %v", err)
	}
	if recovered == 0 {
		logging.Info("  [OK] No interrupted runs")
		return
	}
	logging.Info("  [OK] Rejected %d interrupted run(s)", recovered)
}

// LogRecoverySkipped reports that interrupted runs were left alone because
// another process holds the run lock, or the lock could not be taken.
func LogRecoverySkipped(err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RECOVERY")
	logging.Info("------------------------------------------------------------")
	if err != nil {
		logging.Warn("  [SKIP] Run lock unavailable: %v", err)
		return
	}
	logging.Warn("  [SKIP] Another process is running the pipeline on this database")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ____   _____    _                       __
   / / / / /  / ___/   (_)___  ____ ____  _____/ /_
  / /_/ / /   \__ \   / / __ \/ __ '/ _ \/ ___/ __/
 / __  / /______/ /  / / / / / /_/ /  __(__  ) /_
/_/ /_/_____/____/  /_/_/ /_/\__, /\___/____/\__/
                            /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkTool resolves a tool and reads the first line of its -version output.
func checkTool(configured, name string) (path, version string, err error) {
	path, err = process.Resolve(configured, name)
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return path, "", fmt.Errorf("failed to get %s version: %w", name, err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return path, strings.TrimSpace(first), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
