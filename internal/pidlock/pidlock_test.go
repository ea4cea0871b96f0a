package pidlock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_FreshLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenttalk.pid")
	lock, already, err := Acquire(path)
	require.NoError(t, err)
	assert.False(t, already)
	require.NotNil(t, lock)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	lock.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_StaleLockOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenttalk.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	lock, already, err := Acquire(path)
	require.NoError(t, err)
	assert.False(t, already, "a dead pid must not block acquisition")
	require.NotNil(t, lock)
}

func TestAcquire_LiveInstanceDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenttalk.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	lock, already, err := Acquire(path)
	require.NoError(t, err)
	assert.True(t, already)
	assert.Nil(t, lock)
}
