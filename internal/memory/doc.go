// Package memory configures Go's memory limit in containers and applies
// backpressure to new ingest work when the heap runs hot.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main:
//
//   - GOMEMLIMIT: Standard Go variable. Takes precedence when set.
//   - MEMORY_LIMIT: Container memory limit in bytes, typically from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default 0.6).
//     Encodes run as child processes in the same cgroup, so the heap gets a
//     smaller share than a pure Go service would.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Backpressure
//
// A [Monitor] samples heap usage every CheckInterval. Above
// CriticalWaterMark it pauses: the HTTP upload handler answers 503 and the
// batch CLI waits in [Monitor.WaitIfPaused] before starting the next file.
// It resumes once usage drops below HighWaterMark. Runs already in progress
// are left alone.
package memory
