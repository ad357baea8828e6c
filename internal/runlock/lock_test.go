package runlock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// deadPID is far above any pid_max, so no such process can exist.
const deadPID = 999999999

// TestAcquireRelease creates the marker with our PID and removes it again.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), Filename)

	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, path, lock.Path())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(contents))

	require.NoError(t, lock.Release())
	require.NoFileExists(t, path)
	require.NoError(t, lock.Release())
}

// TestAcquireHeldByLiveProcess refuses a marker owned by a running process.
func TestAcquireHeldByLiveProcess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), Filename)

	first, err := Acquire(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = first.Release()
	})

	_, err = Acquire(context.Background(), path)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.FileExists(t, path)
}

// TestAcquireTakesOverStaleMarker replaces markers of dead or unreadable owners.
func TestAcquireTakesOverStaleMarker(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"dead pid": strconv.Itoa(deadPID),
		"garbage":  "not-a-pid",
	} {
		contents := contents
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), Filename)
			require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

			lock, err := Acquire(context.Background(), path)
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(os.Getpid()), string(data))
			require.NoError(t, lock.Release())
		})
	}
}

// TestNilLockRelease is a no-op.
func TestNilLockRelease(t *testing.T) {
	t.Parallel()

	var lock *Lock
	require.NoError(t, lock.Release())
}
