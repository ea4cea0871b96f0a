//go:build !windows

package pidlock

import (
	"os"
	"syscall"
)

// isProcessAlive probes liveness with signal 0: FindProcess always succeeds
// on POSIX, so the real test is whether Signal(syscall.Signal(0)) errors.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
