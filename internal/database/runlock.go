package database

import (
	"fmt"
	"os"
)

// RunLock coordinates processes that share one database. Every process that
// runs the pipeline holds it shared. Recovery needs it exclusively, because
// it treats every asset in transcoding as abandoned.
type RunLock struct {
	f *os.File
}

// OpenRunLock opens the lock file next to the database at dbPath. Nothing is
// locked until TryExclusive or Share is called.
func OpenRunLock(dbPath string) (*RunLock, error) {
	f, err := os.OpenFile(dbPath+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run lock: %w", err)
	}
	return &RunLock{f: f}, nil
}

// TryExclusive takes the lock exclusively without blocking and reports
// whether it succeeded. Call it before Share: a failed upgrade may drop a
// shared hold.
func (l *RunLock) TryExclusive() (bool, error) {
	return tryLockExclusive(l.f)
}

// Share holds the lock shared, downgrading an exclusive hold. It blocks while
// another process is recovering.
func (l *RunLock) Share() error {
	return lockShared(l.f)
}

// Close releases the lock.
func (l *RunLock) Close() error {
	return l.f.Close()
}
