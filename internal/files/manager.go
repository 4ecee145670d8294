package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager provides output file operations relative to a base directory
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a new file manager. An empty baseDir resolves
// relative paths against the working directory; any other baseDir is made
// absolute so resolved paths resolve to themselves.
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if baseDir != "" {
		if abs, err := filepath.Abs(baseDir); err == nil {
			baseDir = abs
		}
	}
	return &Manager{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "files")),
	}
}

// ResolvePath returns path joined to the base directory unless it is absolute
func (m *Manager) ResolvePath(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(m.baseDir, path)
}

// FileExists checks if a regular file exists at the given path
func (m *Manager) FileExists(path string) bool {
	info, err := os.Stat(m.ResolvePath(path))
	return err == nil && info.Mode().IsRegular()
}

// GetFileSize returns the size of a file in bytes
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(m.ResolvePath(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Open opens a file for reading
func (m *Manager) Open(path string) (*os.File, error) {
	return os.Open(m.ResolvePath(path))
}

// WriteAtomic writes the output of write to path. The destination either
// keeps its previous content or holds the complete new content; it is never
// observed half-written. Returns the number of bytes written.
func (m *Manager) WriteAtomic(path string, write func(w io.Writer) error) (int64, error) {
	fullPath := m.ResolvePath(path)
	dir := filepath.Dir(fullPath)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				m.logger.Warn("Failed to remove temporary file",
					slog.String("path", tmpPath),
					slog.String("error", rmErr.Error()))
			}
		}
	}()

	counter := &countingWriter{w: tmp}
	if err := write(counter); err != nil {
		return 0, fmt.Errorf("failed to write content: %w", err)
	}

	if err := tmp.Chmod(0644); err != nil {
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}

	// Sync to ensure write is complete before the rename publishes it
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", fullPath, err)
	}
	committed = true

	m.logger.Debug("Wrote file",
		slog.String("path", fullPath),
		slog.Int64("size_bytes", counter.n))

	return counter.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
