// Package workspace manages the per-run scratch directory and the isolated
// per-job directories inside it. Each job owns its directory; nothing in it
// is visible to other jobs.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Manager handles workspace operations for a single run.
type Manager struct {
	baseDir string
	runDir  string
	keep    bool
}

// NewManager creates a workspace manager rooted at baseDir. An empty baseDir
// falls back to the system temp directory. When keep is set, Cleanup leaves
// the run directory in place for inspection.
func NewManager(baseDir string, keep bool) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, keep: keep}
}

// Create creates a timestamped directory for this run.
func (m *Manager) Create() error {
	timestamp := time.Now().Format("20060102-150405")
	runDir := filepath.Join(m.baseDir, fmt.Sprintf("matrixci-%s", timestamp))

	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m.runDir = runDir
	slog.Info("Created workspace", logfields.Path(runDir))
	return nil
}

// Path returns the run directory.
func (m *Manager) Path() string {
	return m.runDir
}

// JobDir creates and returns an isolated directory for the given job. The
// name must already be filesystem-safe (job IDs are).
func (m *Manager) JobDir(name string) (string, error) {
	if m.runDir == "" {
		return "", fmt.Errorf("workspace not created")
	}

	dir := filepath.Join(m.runDir, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	return dir, nil
}

// Cleanup removes the run directory unless keep was requested.
func (m *Manager) Cleanup() error {
	if m.runDir == "" {
		return nil
	}

	if m.keep {
		slog.Debug("Keeping workspace for inspection", logfields.Path(m.runDir))
		return nil
	}

	if err := os.RemoveAll(m.runDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}

	slog.Info("Cleaned up workspace", logfields.Path(m.runDir))
	m.runDir = ""
	return nil
}
