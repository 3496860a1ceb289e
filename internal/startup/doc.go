// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables via [LoadConfig]. A .env
// file in the working directory (or the file named by ENV_FILE) is loaded
// first; variables already present in the environment take precedence.
//
//   - MEDIA_ROOT: Base media directory (default: /media)
//   - UPLOAD_DIR: Stored uploads (default: $MEDIA_ROOT/video)
//   - OUTPUT_ROOT: Published HLS packages (default: $MEDIA_ROOT/processed)
//   - PUBLIC_PATH_PREFIX: Prefix of processed references (default: processed)
//   - PUBLIC_BASE_URL: Makes references absolute when set (default: empty)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - FFMPEG_PATH, FFPROBE_PATH: Tool overrides (default: looked up in PATH)
//   - MAX_VIDEO_SIZE_MB: Upload size limit (default: 100)
//   - MAX_VIDEO_DURATION: Duration limit in seconds (default: 600)
//   - PROCESSING_TIMEOUT: Encode budget in seconds (default: 300)
//   - PROBE_TIMEOUT: Duration probe budget in seconds (default: 30)
//   - ENCODER_THREADS, ENCODER_PRESET, ENCODER_CRF, ENCODER_MAXRATE_KBPS,
//     ENCODER_NICE: Encoder settings (defaults: 2, veryfast, 27, 2000, 10)
//   - NORMALIZE_PERMISSIONS: chmod published files 0644 and dirs 0755 (default: true)
//   - POSTER_ENABLED, POSTER_WIDTH: Poster thumbnails (defaults: true, 480)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log processed file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid numeric values fall back to their default with a warning. Values
// that parse but are out of range make LoadConfig fail.
//
// # Directory Setup
//
// The upload, output and database directories are created if missing and
// must be writable. The media root only has to exist.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogToolsInit]: ffmpeg and ffprobe availability
//   - [LogRecovery]: Interrupted runs rejected at startup
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
