//go:build linux

package pidlock

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAcquire_LivePIDDifferentExecutable covers §4.11: a pid file naming a
// live process that isn't this program (a reused pid) must be treated as
// stale, not as "already running".
func TestAcquire_LivePIDDifferentExecutable(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	path := filepath.Join(t.TempDir(), "agenttalk.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644))

	lock, already, err := Acquire(path)
	require.NoError(t, err)
	assert.False(t, already, "a live pid belonging to a different executable must not block acquisition")
	require.NotNil(t, lock)
}
