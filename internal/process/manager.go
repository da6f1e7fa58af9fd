// Package process tracks the running bridge through a pidfile so the stop
// and status commands can find it.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFilename = "ollama-bridge.pid"

type Manager struct {
	pidPath string
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		pidPath: filepath.Join(baseDir, pidFilename),
	}
}

func (m *Manager) WritePID() error {
	if err := os.MkdirAll(filepath.Dir(m.pidPath), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}

	return os.WriteFile(m.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (m *Manager) CleanupPID() {
	os.Remove(m.pidPath)
}

func (m *Manager) ReadPID() (int, error) {
	data, err := os.ReadFile(m.pidPath)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		m.CleanupPID()
		return 0, fmt.Errorf("corrupt pid file: %w", err)
	}

	return pid, nil
}

// IsRunning reports whether the recorded pid still refers to a live process.
// A stale or corrupt pidfile is cleaned up as a side effect.
func (m *Manager) IsRunning() bool {
	pid, err := m.ReadPID()
	if err != nil {
		return false
	}

	if err := syscall.Kill(pid, 0); err != nil {
		m.CleanupPID()
		return false
	}

	return true
}

// Stop signals the recorded process with SIGTERM and removes the pidfile.
func (m *Manager) Stop() error {
	if !m.IsRunning() {
		m.CleanupPID()
		return errors.New("no running service")
	}

	pid, err := m.ReadPID()
	if err != nil {
		return err
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	m.CleanupPID()

	return nil
}
