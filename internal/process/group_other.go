//go:build !(linux || darwin || freebsd)

package process

import "os/exec"

// setProcessGroup falls back to killing only the direct child.
func setProcessGroup(_ *exec.Cmd) {}

func lowerPriority(_, _ int) error {
	return nil
}
