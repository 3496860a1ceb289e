// Package logging provides a simple leveled logging interface for the
// ingest service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (e.g. a skipped duration probe)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// Package-level functions log without a prefix; [For] returns a Logger
// that tags every line with a component name such as "pipeline" or
// "transcoder".
//
// The log level is configured via the LOG_LEVEL environment variable,
// or forced to debug with DEBUG=true.
package logging
