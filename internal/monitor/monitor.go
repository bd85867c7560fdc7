package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/puckstats/shotrecorder/internal/session"

	"github.com/rs/zerolog"
)

// SessionSource is the part of the session recorder the monitor reads.
type SessionSource interface {
	Info() (session.Info, bool)
	Dirty() bool
}

// PuckSource reports how many pucks are being tracked.
type PuckSource interface {
	TrackedPucks() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session    SessionSource
	Pucks      PuckSource
	StatusPath string
	Interval   time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Status is one snapshot of the recorder, as written to the status file.
type Status struct {
	Time         time.Time `json:"time"`
	Server       string    `json:"server,omitempty"`
	Session      string    `json:"session,omitempty"`
	Shots        int       `json:"shots"`
	TrackedPucks int       `json:"trackedPucks"`
	Dirty        bool      `json:"dirty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current recorder status
func (s *Service) GetStatus() Status {
	st := Status{Time: s.deps.Now()}
	if s.deps.Session != nil {
		if info, ok := s.deps.Session.Info(); ok {
			st.Server = info.Server
			st.Session = info.ID
			st.Shots = info.Shots
		}
		st.Dirty = s.deps.Session.Dirty()
	}
	if s.deps.Pucks != nil {
		st.TrackedPucks = s.deps.Pucks.TrackedPucks()
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	st := s.GetStatus()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if st.Dirty {
		s.deps.Logger.Warn().Str("session", st.Session).Int("shots", st.Shots).Msg("Session has unsaved shots")
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.StatusPath == "" {
		s.mu.Unlock()
		return fmt.Errorf("status monitor has no status path")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug().Dur("interval", s.deps.Interval).Str("path", s.deps.StatusPath).Msg("Starting status monitor")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					s.deps.Logger.Error().Err(err).Msg("Error writing final status")
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					s.deps.Logger.Error().Err(err).Msg("Error writing status")
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor after a last status write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = nil
	done := s.done
	s.mu.Unlock()
	<-done
}
