//go:build linux

package pidlock

import (
	"fmt"
	"os"
)

// isSameExecutable compares /proc/<pid>/exe against the running binary's own
// path, so a pid reused by an unrelated process is not mistaken for a live
// instance of this daemon (§4.7 step 2, §4.11). When either path cannot be
// read, the pid is assumed to belong to this program.
func isSameExecutable(pid int) bool {
	self, err := os.Executable()
	if err != nil {
		return true
	}
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return true
	}
	return target == self
}
