//go:build !windows

package process

import (
	"fmt"
	"syscall"
)

// KillTree sends SIGKILL to the process group led by pid, taking the
// renderer and GPU children with the browser.
func KillTree(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return syscall.Kill(-pid, syscall.SIGKILL)
}
