package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/dmg-builder/internal/logger"
)

const (
	// Filename is the marker created in the build root while an assembly runs.
	Filename = ".dmg-builder.lock"

	markerPermissions os.FileMode = 0o600
)

// ErrAlreadyRunning is returned when a live process holds the lock.
var ErrAlreadyRunning = errors.New("another assembly is running")

// Lock is a held run marker.
type Lock struct {
	path string
}

// Acquire creates the marker at path for the current process.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	path = filepath.Clean(path)

	if err := recoverStale(ctx, path); err != nil {
		return nil, err
	}

	marker, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
		}

		return nil, fmt.Errorf("create run marker: %w", err)
	}

	_, err = marker.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := marker.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	logger.DebugKV(ctx, "Run marker acquired", "path", path)

	return &Lock{path: path}, nil
}

// Release removes the marker. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run marker: %w", err)
	}

	return nil
}

// Path returns the marker location.
func (l *Lock) Path() string {
	return l.path
}

// recoverStale removes a marker left behind by a process that is gone.
func recoverStale(ctx context.Context, path string) error {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read run marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err == nil && processAlive(pid) {
		return fmt.Errorf("%s held by pid %d: %w", path, pid, ErrAlreadyRunning)
	}

	logger.InfoKV(ctx, "Removing stale run marker", "path", path, "pid", strings.TrimSpace(string(contents)))

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale run marker: %w", err)
	}

	return nil
}

// processAlive reports whether pid is in the process table.
// When the table cannot be read the process is assumed alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
