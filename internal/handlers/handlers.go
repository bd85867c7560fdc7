// Package handlers hosts the runtime context of the shot recorder: the
// per-puck trackers, the goal reconciler and the session recorder, and the
// host commands that drive them.
package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puckstats/shotrecorder/internal/cache"
	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/internal/dispatcher"
	"github.com/puckstats/shotrecorder/internal/geo"
	"github.com/puckstats/shotrecorder/internal/parser"
	"github.com/puckstats/shotrecorder/internal/reconcile"
	"github.com/puckstats/shotrecorder/internal/roster"
	"github.com/puckstats/shotrecorder/internal/session"
	"github.com/puckstats/shotrecorder/internal/tracker"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Host commands handled by the Service.
const (
	CmdTick          = ":TICK:"
	CmdStickReleased = ":STICK:RELEASED:"
	CmdStickTouch    = ":STICK:TOUCH:"
	CmdCollision     = ":COLLISION:"
	CmdGoalScored    = ":GOAL:SCORED:"
	CmdPhaseChanged  = ":PHASE:CHANGED:"
	CmdPhysics       = ":PHYSICS:"
	CmdPlayerUpdate  = ":PLAYER:UPDATE:"
	CmdPlayerRemoved = ":PLAYER:REMOVED:"
	CmdPuckRemoved   = ":PUCK:REMOVED:"
	CmdShutdown      = ":SHUTDOWN:"
)

// EventSource is where the Service subscribes to host commands.
// *dispatcher.Dispatcher implements it.
type EventSource interface {
	Register(command string, h dispatcher.HandlerFunc, opts ...dispatcher.Option)
	Unregister(command string)
}

// Roster is the roster query boundary plus the updates the host pushes.
type Roster interface {
	roster.Lookup
	Upsert(p core.Player)
	Remove(id core.PlayerID)
}

// ContactHistory is the per-puck contact log used for goal attribution.
type ContactHistory interface {
	reconcile.ContactHistory
	Add(puck core.PuckID, c core.Contact)
	Forget(puck core.PuckID)
	Reset()
}

// Dependencies holds all dependencies needed by the Service
type Dependencies struct {
	Geometry config.GeometryConfig
	Roster   Roster
	Contacts ContactHistory
	Recorder *session.Recorder
	Parser   *parser.Parser
	// Meter creates the service counters; nil uses a no-op meter.
	Meter metric.Meter
	// Now is the wall clock used for record timestamps.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Service provides handler methods for processing host events
type Service struct {
	deps       Dependencies
	log        zerolog.Logger
	classifier geo.Classifier
	reconciler *reconcile.Reconciler

	shotsRecorded   metric.Int64Counter
	goalsSuppressed metric.Int64Counter

	mu       sync.Mutex
	trackers map[core.PuckID]*tracker.Tracker

	// gameMu is separate from mu because trackers read the game state while
	// holding their own lock.
	gameMu sync.RWMutex
	game   core.GameState
}

// NewService creates a new handler service
func NewService(deps Dependencies) (*Service, error) {
	if deps.Recorder == nil {
		return nil, errors.New("handlers: recorder is required")
	}
	if deps.Roster == nil {
		deps.Roster = roster.NewCache()
	}
	if deps.Contacts == nil {
		deps.Contacts = cache.NewContactCache(deps.Geometry.ContactHistorySize)
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		deps:     deps,
		log:      deps.Logger.With().Str("component", "handlers").Logger(),
		trackers: make(map[core.PuckID]*tracker.Tracker),
	}

	s.classifier = geo.NewClassifier(geo.Goals{Blue: deps.Geometry.BlueGoal, Red: deps.Geometry.RedGoal})
	if deps.Geometry.MinSpeed > 0 {
		s.classifier.MinSpeed = deps.Geometry.MinSpeed
	}
	if deps.Geometry.ConeDot > 0 {
		s.classifier.ConeDot = deps.Geometry.ConeDot
	}

	var err error
	s.shotsRecorded, err = deps.Meter.Int64Counter(
		"shots.recorded",
		metric.WithDescription("Shot records appended to the session, by type"),
	)
	if err != nil {
		return nil, err
	}
	s.goalsSuppressed, err = deps.Meter.Int64Counter(
		"goals.suppressed",
		metric.WithDescription("Goal signals dropped as duplicates"),
	)
	if err != nil {
		return nil, err
	}

	s.reconciler = reconcile.New(reconcile.Config{
		Tracker:  s.finalizer,
		Contacts: deps.Contacts,
		Roster:   deps.Roster,
		Sink:     recordingSink{s},
		Game:     s.gameState,
		Now:      deps.Now,
		Cooldown: deps.Geometry.GoalCooldown,
		Logger:   deps.Logger.With().Str("component", "reconcile").Logger(),
	})

	return s, nil
}

// Start subscribes the service to every host command.
func (s *Service) Start(src EventSource) {
	src.Register(CmdTick, s.handleTick)
	src.Register(CmdStickReleased, s.handleStickReleased)
	src.Register(CmdStickTouch, s.handleStickTouch)
	src.Register(CmdCollision, s.handleCollision)
	src.Register(CmdGoalScored, s.handleGoalScored, dispatcher.Logged())
	src.Register(CmdPhaseChanged, s.handlePhaseChanged, dispatcher.Logged())
	src.Register(CmdPhysics, s.handlePhysics, dispatcher.Logged())
	src.Register(CmdPlayerUpdate, s.handlePlayerUpdate)
	src.Register(CmdPlayerRemoved, s.handlePlayerRemoved)
	src.Register(CmdPuckRemoved, s.handlePuckRemoved)
	src.Register(CmdShutdown, s.handleShutdown, dispatcher.Logged())
}

// Stop unsubscribes every command registered by Start and flushes the session.
func (s *Service) Stop(src EventSource) error {
	for _, cmd := range Commands() {
		src.Unregister(cmd)
	}
	s.flushHeld()
	return s.deps.Recorder.Flush()
}

// Commands lists the commands registered by Start.
func Commands() []string {
	return []string{
		CmdTick, CmdStickReleased, CmdStickTouch, CmdCollision, CmdGoalScored,
		CmdPhaseChanged, CmdPhysics, CmdPlayerUpdate, CmdPlayerRemoved,
		CmdPuckRemoved, CmdShutdown,
	}
}

// OnTick drives the goal zone of the puck. It emits a shot held from an earlier
// step and holds one that left the zone in this step. The first tick ever
// starts a session.
func (s *Service) OnTick(ev core.Tick) {
	defer s.guard(CmdTick)

	s.setGame(ev.Game)
	if s.deps.Recorder.EnsureSession() {
		s.log.Info().Msg("Session started on first tick")
	}
	if ev.Puck.IsReplay {
		return
	}
	s.tracker(ev.Puck.ID).OnTick(ev.Puck, ev.Game)
}

// OnStickReleased opens a pending shot when the release qualifies.
func (s *Service) OnStickReleased(ev core.StickReleased) {
	defer s.guard(CmdStickReleased)

	if ev.Puck.IsReplay {
		return
	}
	s.deps.Contacts.Add(ev.Puck.ID, core.Contact{PlayerID: ev.Player, Kind: core.ContactStick, SimTime: ev.SimTime})

	t := s.tracker(ev.Puck.ID)
	t.Settle(ev.SimTime)
	err := t.OnStickReleased(ev.Puck, ev.Player)
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrMissingIdentity), errors.Is(err, tracker.ErrUnknownPlayer):
		s.log.Debug().Err(err).Uint64("player", uint64(ev.Player)).Msg("Release skipped")
	default:
		s.log.Warn().Err(err).Uint64("player", uint64(ev.Player)).Msg("Release failed")
	}
}

// OnStickTouch discards the pending shot of the puck, including one that left
// the goal zone in the same step.
func (s *Service) OnStickTouch(ev core.StickTouch) {
	defer s.guard(CmdStickTouch)

	if ev.Puck.IsReplay {
		return
	}
	s.deps.Contacts.Add(ev.Puck.ID, core.Contact{PlayerID: ev.Player, Kind: core.ContactStick, SimTime: ev.SimTime})
	if t, ok := s.existingTracker(ev.Puck.ID); ok {
		t.Settle(ev.SimTime)
		t.OnStickTouch()
	}
}

// OnCollision registers goalie hits. Body contacts also feed the contact history.
func (s *Service) OnCollision(ev core.Collision) {
	defer s.guard(CmdCollision)

	if ev.Puck.IsReplay {
		return
	}
	if ev.Other.Kind == core.ContactBody {
		s.deps.Contacts.Add(ev.Puck.ID, core.Contact{PlayerID: ev.Other.Owner, Kind: core.ContactBody, SimTime: ev.SimTime})
	}
	if t, ok := s.existingTracker(ev.Puck.ID); ok {
		t.Settle(ev.SimTime)
		t.OnCollision(ev.Puck, ev.Other)
	}
}

// OnGoalScored reconciles the host's goal signal and reports the outcome.
func (s *Service) OnGoalScored(ev core.GoalScored) (res reconcile.Result) {
	defer s.guard(CmdGoalScored)

	if t, ok := s.existingTracker(ev.Puck.ID); ok {
		t.Settle(ev.SimTime)
	}
	res = s.reconciler.Apply(ev)
	if res == reconcile.Duplicate {
		s.goalsSuppressed.Add(context.Background(), 1)
	}
	return res
}

// OnGamePhaseChanged tracks the match state. The first face-off of a new match
// flushes the previous session and starts a fresh one.
func (s *Service) OnGamePhaseChanged(ev core.PhaseChanged) {
	defer s.guard(CmdPhaseChanged)

	s.setGame(ev.Game)
	trackers := s.allTrackers()
	if !ev.FirstFaceOff {
		for _, t := range trackers {
			t.Settle(ev.Game.SimTime)
		}
		return
	}

	// shots held from the last step of the old match belong to its session
	s.flushHeld()
	s.deps.Recorder.StartNewSession()
	s.reconciler.Reset()
	s.deps.Contacts.Reset()
	for _, t := range trackers {
		t.Reset()
	}

	s.log.Info().Int("period", ev.Game.Period).Msg("New match, session rotated")
}

// OnPhysicsConstants captures the host physics once.
func (s *Service) OnPhysicsConstants(pc core.PhysicsConstants) {
	defer s.guard(CmdPhysics)

	if !s.deps.Recorder.CaptureConstants(pc) {
		s.log.Debug().Msg("Physics constants already captured, ignored")
	}
}

// OnPlayerUpdate refreshes a player in the roster.
func (s *Service) OnPlayerUpdate(p core.Player) {
	defer s.guard(CmdPlayerUpdate)
	s.deps.Roster.Upsert(p)
}

// OnPlayerRemoved drops a player from the roster.
func (s *Service) OnPlayerRemoved(id core.PlayerID) {
	defer s.guard(CmdPlayerRemoved)
	s.deps.Roster.Remove(id)
}

// OnPuckRemoved forgets the tracker and contact history of a destroyed puck.
// A shot that already left the goal zone is emitted; one still in flight is
// discarded.
func (s *Service) OnPuckRemoved(id core.PuckID) {
	defer s.guard(CmdPuckRemoved)

	s.mu.Lock()
	t, ok := s.trackers[id]
	delete(s.trackers, id)
	s.mu.Unlock()
	if ok {
		t.Flush()
	}
	s.deps.Contacts.Forget(id)
}

// OnShutdown emits held shots and writes the current session.
func (s *Service) OnShutdown() error {
	defer s.guard(CmdShutdown)
	s.flushHeld()
	return s.deps.Recorder.Flush()
}

// TrackedPucks returns the number of pucks with a tracker.
func (s *Service) TrackedPucks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

// Tracker returns the tracker of puck, if one exists.
func (s *Service) Tracker(puck core.PuckID) (*tracker.Tracker, bool) {
	return s.existingTracker(puck)
}

// Game returns the last match state seen.
func (s *Service) Game() core.GameState {
	return s.gameState()
}

func (s *Service) tracker(puck core.PuckID) *tracker.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trackers[puck]
	if !ok {
		t = tracker.New(puck, tracker.Dependencies{
			Classifier: s.classifier,
			ZoneRadius: s.deps.Geometry.ZoneRadius,
			Roster:     s.deps.Roster,
			Sink:       recordingSink{s},
			Game:       s.gameState,
			Now:        s.deps.Now,
			Logger:     s.deps.Logger.With().Str("component", "tracker").Logger(),
		})
		s.trackers[puck] = t
	}
	return t
}

func (s *Service) allTrackers() []*tracker.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tracker.Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		out = append(out, t)
	}
	return out
}

// flushHeld emits every shot waiting for the end of its step.
func (s *Service) flushHeld() {
	for _, t := range s.allTrackers() {
		t.Flush()
	}
}

func (s *Service) existingTracker(puck core.PuckID) (*tracker.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[puck]
	return t, ok
}

func (s *Service) finalizer(puck core.PuckID) (reconcile.Finalizer, bool) {
	t, ok := s.existingTracker(puck)
	if !ok {
		return nil, false
	}
	return t, true
}

func (s *Service) gameState() core.GameState {
	s.gameMu.RLock()
	defer s.gameMu.RUnlock()
	return s.game
}

func (s *Service) setGame(g core.GameState) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	s.game = g
}

// guard keeps a panic in one event from escaping to the host.
func (s *Service) guard(op string) {
	if r := recover(); r != nil {
		s.log.Error().Str("command", op).Interface("panic", r).Msg("Recovered from panic in handler")
	}
}

// recordingSink appends to the session and counts what was recorded.
type recordingSink struct {
	s *Service
}

func (r recordingSink) Append(rec core.ShotRecord) error {
	r.s.shotsRecorded.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("type", rec.Type.String())))
	return r.s.deps.Recorder.Append(rec)
}
