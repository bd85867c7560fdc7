// Package session owns the shot log of the current match and its persistence.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puckstats/shotrecorder/internal/storage"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
)

// Recorder holds the current session and rewrites it to the backend on every change.
type Recorder struct {
	serverName string
	backend    storage.Backend
	now        func() time.Time
	log        zerolog.Logger

	mu      sync.Mutex
	current *core.Session
	physics *core.PhysicsConstants
	// dirty is set when the last write failed, so the next append or flush retries
	dirty bool

	info atomic.Pointer[Info]
}

// Info is a snapshot of the current session that can be read without locking.
type Info struct {
	Server string
	ID     string
	Shots  int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the wall clock used for session start times.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the recorder's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// NewRecorder creates a recorder without a session. The first EnsureSession starts one.
func NewRecorder(serverName string, backend storage.Backend, opts ...Option) *Recorder {
	r := &Recorder{
		serverName: serverName,
		backend:    backend,
		now:        func() time.Time { return time.Now().UTC() },
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureSession starts a session if none exists yet. It reports whether one was created.
func (r *Recorder) EnsureSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return false
	}
	r.begin()
	return true
}

// StartNewSession flushes the current session if it has shots, then replaces
// it with an empty one.
func (r *Recorder) StartNewSession() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && len(r.current.Shots) > 0 {
		r.persist()
	}
	r.begin()
}

// CaptureConstants stores the physics constants the first time it is called.
// Later calls are ignored and return false.
func (r *Recorder) CaptureConstants(pc core.PhysicsConstants) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.physics != nil {
		return false
	}
	r.physics = &pc
	if r.current != nil && r.current.Physics == nil {
		p := pc
		r.current.Physics = &p
	}
	r.log.Info().
		Float64("mass", pc.PuckMass).
		Float64("maxSpeed", pc.MaxSpeed).
		Msg("Physics constants captured")
	return true
}

// Append adds a shot to the current session and rewrites the session. A
// write failure is returned after logging; the shot stays in memory.
func (r *Recorder) Append(rec core.ShotRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.begin()
	}
	r.current.Shots = append(r.current.Shots, rec.Clone())
	r.publish()
	return r.persist()
}

// Current returns a copy of the current session.
func (r *Recorder) Current() (core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return core.Session{}, false
	}
	return r.current.Clone(), true
}

// Flush writes the current session if it has shots.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || len(r.current.Shots) == 0 {
		return nil
	}
	return r.persist()
}

// Close flushes the current session and ends it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.current != nil && len(r.current.Shots) > 0 {
		err = r.persist()
	}
	r.current = nil
	r.info.Store(nil)
	return err
}

// Info returns the snapshot of the current session, if any.
func (r *Recorder) Info() (Info, bool) {
	if i := r.info.Load(); i != nil {
		return *i, true
	}
	return Info{}, false
}

// Dirty reports whether the last write failed.
func (r *Recorder) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// begin replaces the current session. Caller holds r.mu.
func (r *Recorder) begin() {
	var physics *core.PhysicsConstants
	if r.physics != nil {
		p := *r.physics
		physics = &p
	}
	r.current = core.NewSession(r.serverName, r.now(), physics)
	r.dirty = false
	r.publish()
	r.log.Info().
		Str("session", r.current.ID.String()).
		Time("start", r.current.Start).
		Msg("Session started")
}

// publish refreshes the lock-free snapshot. Caller holds r.mu.
func (r *Recorder) publish() {
	r.info.Store(&Info{
		Server: r.current.ServerName,
		ID:     r.current.ID.String(),
		Shots:  len(r.current.Shots),
	})
}

// persist rewrites the whole session. Caller holds r.mu.
func (r *Recorder) persist() error {
	if r.backend == nil {
		return nil
	}
	if err := r.backend.SaveSession(r.current); err != nil {
		r.dirty = true
		r.log.Error().Err(err).
			Str("session", r.current.ID.String()).
			Int("shots", len(r.current.Shots)).
			Msg("Failed to persist session, will retry on next change")
		return err
	}
	r.dirty = false
	r.log.Debug().
		Str("session", r.current.ID.String()).
		Int("shots", len(r.current.Shots)).
		Msg("Session persisted")
	return nil
}
