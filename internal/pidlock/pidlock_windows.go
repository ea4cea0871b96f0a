//go:build windows

package pidlock

import "golang.org/x/sys/windows"

// isProcessAlive opens the process with a minimal access right; a dead or
// unknown pid fails to open.
func isProcessAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	const stillActive = 259
	return exitCode == stillActive
}

// isSameExecutable has no cheap Windows equivalent of /proc/<pid>/exe (it
// would require QueryFullProcessImageName plus a privileged handle), so a
// live pid is assumed to belong to this program (§4.11 "fallback: assume
// alive").
func isSameExecutable(pid int) bool { return true }
