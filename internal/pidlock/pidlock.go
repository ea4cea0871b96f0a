// Package pidlock implements the single-instance PID lock file: acquire at
// startup, detect a live prior instance, overwrite stale entries, remove on
// normal exit.
//
// Grounded on RedClaus-cortex/core/.deferred-features/voice/
// voicebox_launcher.go's isRunningViaPIDFile (FindProcess + Signal(0)
// liveness probe), adapted from "kill the stale instance" to "exit quietly,
// leave the running one alone" (§4.7 step 2, §8 "Single-instance property").
package pidlock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Lock owns the PID file's lifecycle for this process.
type Lock struct {
	path string
}

// Acquire checks path for a live prior instance. If one is found, alreadyRunning
// is true and the caller must exit quietly with success (§4.7 step 2). Otherwise
// the current process id is written to path (overwriting any stale entry) and a
// Lock is returned for release on normal exit.
func Acquire(path string) (lock *Lock, alreadyRunning bool, err error) {
	if pid, ok := readLivePID(path); ok {
		_ = pid
		return nil, true, nil
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, false, fmt.Errorf("pidlock: write pid file: %w", err)
	}
	return &Lock{path: path}, false, nil
}

// Release removes the PID file on normal exit (§4.7 shutdown).
func (l *Lock) Release() {
	if l == nil {
		return
	}
	os.Remove(l.path)
}

// readLivePID reports whether path holds the PID of a still-running instance
// of this program. A missing file, unparseable contents, a dead process, or
// a live process that isn't this binary (a reused pid) all report false (the
// existing lock, if any, is stale and safe to overwrite) — §4.7 step 2, §4.11
// "a reused pid must not be mistaken for a live instance."
func readLivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, isProcessAlive(pid) && isSameExecutable(pid)
}
