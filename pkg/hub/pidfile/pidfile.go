// Package pidfile manages the advisory-locked pidfile that lets
// `proxy stop`/`status`/`restart` agree with a backgrounded `proxy start`
// on which process, if any, is currently running.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
)

// Handle wraps the flock.Flock guarding the pidfile, plus the path it
// guards.
type Handle struct {
	path string
	lock *flock.Flock
}

// New returns a Handle for the pidfile at path, without acquiring the
// lock.
func New(path string) *Handle {
	return &Handle{path: path, lock: flock.New(path)}
}

// Acquire takes an exclusive, non-blocking lock on the pidfile and writes
// the current process's pid into it. Returns an error if another process
// already holds the lock (i.e. the proxy is already running).
func (h *Handle) Acquire() error {
	locked, err := h.lock.TryLock()
	if err != nil {
		return huberrors.Wrap(huberrors.KindConfig, "acquiring pidfile lock", err)
	}
	if !locked {
		return huberrors.New(huberrors.KindConfig, "another instance is already running")
	}
	if err := os.WriteFile(h.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = h.lock.Unlock()
		return huberrors.Wrap(huberrors.KindConfig, "writing pidfile", err)
	}
	return nil
}

// Release unlocks the pidfile and removes it.
func (h *Handle) Release() error {
	if err := h.lock.Unlock(); err != nil {
		return huberrors.Wrap(huberrors.KindConfig, "releasing pidfile lock", err)
	}
	return os.Remove(h.path)
}

// ReadPID reads the pid recorded at path without taking the lock, used by
// stop/status/restart to find the running instance.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, huberrors.Wrap(huberrors.KindNotFound, "no pidfile present", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, huberrors.Wrap(huberrors.KindConfig, "pidfile contents are not a valid pid", err)
	}
	return pid, nil
}

// IsRunning reports whether pid refers to a live process, by sending
// signal 0 (which performs existence/permission checks without actually
// signaling the process).
func IsRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Stop sends SIGTERM to the recorded pid, for a graceful shutdown.
func Stop(path string) error {
	pid, err := ReadPID(path)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return huberrors.Wrap(huberrors.KindConfig, fmt.Sprintf("finding process %d", pid), err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return huberrors.Wrap(huberrors.KindConfig, fmt.Sprintf("signaling process %d", pid), err)
	}
	return nil
}
