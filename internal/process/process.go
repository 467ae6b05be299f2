// Package process keeps a single poller per user by recording the running
// instance in a PID file.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gops/goprocess"
	"github.com/inovacc/ghnotify/internal/encoding"
)

// ErrAlreadyRunning is returned by Acquire when a live instance holds the file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Instance is the content of the PID file.
type Instance struct {
	PID       int       `json:"pid"`
	Exec      string    `json:"exec"`
	StartedAt time.Time `json:"started_at"`
}

// findAll lists the Go processes on this host.
var findAll = goprocess.FindAll

// Running reports whether pid is a live Go process whose executable name
// contains name.
func Running(pid int, name string) bool {
	name = strings.ToLower(name)

	for _, p := range findAll() {
		if p.PID != pid {
			continue
		}

		return name == "" ||
			strings.Contains(strings.ToLower(p.Exec), name) ||
			strings.Contains(strings.ToLower(p.Path), name)
	}

	return false
}

// Lock is a held PID file.
type Lock struct {
	path string
	pid  int
}

// Acquire writes the PID file at path unless a live process named name
// already holds it. A stale or unreadable file is replaced.
func Acquire(path, name string) (*Lock, error) {
	pid := os.Getpid()

	inst, err := encoding.LoadJSON[Instance](path)
	if err == nil && inst != nil && inst.PID != pid && Running(inst.PID, name) {
		return nil, fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, inst.PID, inst.StartedAt.Format(time.RFC3339))
	}

	exe, _ := os.Executable()

	if err := encoding.SaveJSON(path, Instance{PID: pid, Exec: filepath.Base(exe), StartedAt: time.Now()}); err != nil {
		return nil, err
	}

	return &Lock{path: path, pid: pid}, nil
}

// Release removes the PID file if it still belongs to this process.
func (l *Lock) Release() error {
	inst, err := encoding.LoadJSON[Instance](l.path)
	if err != nil || inst == nil || inst.PID != l.pid {
		return err
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", l.path, err)
	}

	return nil
}
