// internal/storage/storage.go
package storage

import (
	"errors"
	"fmt"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// ErrUnknownType is returned by the factory for an unsupported storage.type.
var ErrUnknownType = errors.New("unknown storage type")

// Backend is the interface all storage implementations must satisfy.
// SaveSession replaces everything previously stored for the session.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	SaveSession(s *core.Session) error
}

// Locator is an optional interface for backends that write one file per session.
type Locator interface {
	Path(s *core.Session) string
}

// Multi fans a session out to a primary backend and any number of mirrors.
// Every backend is attempted; the errors are joined.
type Multi struct {
	backends []Backend
}

// NewMulti creates a fan-out over primary followed by mirrors. Nil entries are skipped.
func NewMulti(primary Backend, mirrors ...Backend) *Multi {
	m := &Multi{}
	for _, b := range append([]Backend{primary}, mirrors...) {
		if b != nil {
			m.backends = append(m.backends, b)
		}
	}
	return m
}

// Backends returns the wrapped backends in write order.
func (m *Multi) Backends() []Backend {
	return m.backends
}

// Init initializes every backend, stopping at the first failure.
func (m *Multi) Init() error {
	for i, b := range m.backends {
		if err := b.Init(); err != nil {
			return fmt.Errorf("init backend %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every backend.
func (m *Multi) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveSession writes s to every backend.
func (m *Multi) SaveSession(s *core.Session) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.SaveSession(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Path returns the file path of the first backend that writes files.
func (m *Multi) Path(s *core.Session) string {
	for _, b := range m.backends {
		if l, ok := b.(Locator); ok {
			return l.Path(s)
		}
	}
	return ""
}
