package runner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Scratch is a per-job temporary directory. Close removes it and everything
// written into it; it is safe to call more than once.
type Scratch struct {
	Dir    string
	logger *slog.Logger
}

// NewScratch creates a scratch directory under base (os.TempDir when empty).
func NewScratch(base, pattern string, logger *slog.Logger) (*Scratch, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := os.MkdirTemp(base, pattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir, logger: logger}, nil
}

// Path joins name onto the scratch directory.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Write stores data under name and returns the full path.
func (s *Scratch) Write(name string, data []byte) (string, error) {
	p := s.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return p, nil
}

func (s *Scratch) Close() {
	if s == nil || s.Dir == "" {
		return
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		s.logger.Warn("failed to remove temp dir", "dir", s.Dir, "error", err)
	}
}

// SafeName strips directories from a client-supplied filename.
func SafeName(filename, fallback string) string {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." || base == "" {
		return fallback
	}
	return base
}
