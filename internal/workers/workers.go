package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// OverrideEnv names the environment variable that forces the worker count.
const OverrideEnv = "INGEST_WORKERS"

// Count returns the number of workers for a task. It respects container
// CPU limits via GOMAXPROCS.
//
// The multiplier scales the available CPUs: 1.0 for CPU-bound tasks, less
// for tasks that are themselves multi-threaded. The result is at least 1.
// The limit caps the count; use 0 for no limit.
//
// INGEST_WORKERS overrides the computed value, still subject to limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForEncoder returns how many encoder processes can run side by side when
// each one uses threads CPU threads.
func ForEncoder(threads, limit int) int {
	if threads < 1 {
		threads = 1
	}
	return Count(1/float64(threads), limit)
}

// ForEach calls fn for every item using n concurrent workers and waits for
// them to finish. Items not yet started when ctx is done are skipped.
func ForEach[T any](ctx context.Context, n int, items []T, fn func(context.Context, T)) {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	jobs := make(chan T)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				fn(ctx, item)
			}
		}()
	}

feed:
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- item:
		}
	}
	close(jobs)
	wg.Wait()
}
