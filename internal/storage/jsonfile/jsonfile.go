// Package jsonfile writes one JSON document per session, fully rewritten on every save.
package jsonfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/puckstats/shotrecorder/internal/util"
	"github.com/puckstats/shotrecorder/pkg/core"
)

// Config holds session file settings
type Config struct {
	OutputDir string
	Pretty    bool
}

// Backend stores sessions as JSON files in OutputDir
type Backend struct {
	cfg Config

	mu       sync.Mutex
	lastPath string
}

// New creates a new JSON file backend
func New(cfg Config) *Backend {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &Backend{cfg: cfg}
}

// Init ensures the output directory exists
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close is a no-op
func (b *Backend) Close() error {
	return nil
}

// Path returns the file a session is written to: <server>_<yyyyMMdd_HHmmss>.json
func (b *Backend) Path(s *core.Session) string {
	name := fmt.Sprintf("%s_%s.json",
		util.SanitizeFileName(s.ServerName),
		s.Start.Format("20060102_150405"),
	)
	return filepath.Join(b.cfg.OutputDir, name)
}

// LastPath returns the path of the most recent successful write.
func (b *Backend) LastPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPath
}

// SaveSession overwrites the session file with the full session.
func (b *Backend) SaveSession(s *core.Session) error {
	data, err := Marshal(s, b.cfg.Pretty)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := b.Path(s)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	b.lastPath = path
	return nil
}

// ReadFile loads a session file written by SaveSession.
func ReadFile(path string) (core.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to read session file: %w", err)
	}
	return Unmarshal(data)
}

// writeFileAtomic replaces path so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
