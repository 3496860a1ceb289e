package process

import "syscall"

// groupAttr also asks the kernel to kill the child if this process dies
// without canceling it.
func groupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
}
