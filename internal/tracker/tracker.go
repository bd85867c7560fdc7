// Package tracker implements the per-puck shot state machine.
//
// A puck is Idle, Pending or Held. A stick release aimed at the opposing goal
// opens a pending shot and any stick touch discards it. An authoritative goal
// signal finalizes it into a core.ShotRecord at once. Leaving the goal zone
// only holds it: the host may report a stick touch from the same simulation
// step after the tick, so the shot is emitted once an event from a later step
// arrives or the step is flushed.
package tracker

import (
	"errors"
	"sync"
	"time"

	"github.com/puckstats/shotrecorder/internal/geo"
	"github.com/puckstats/shotrecorder/internal/roster"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
)

var (
	// ErrUnknownPlayer is returned when a release references a player the roster does not know.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrMissingIdentity is returned when the releasing player has no team, username or number yet.
	ErrMissingIdentity = errors.New("player identity incomplete")
)

// State is the state of a tracker
type State uint8

const (
	Idle State = iota
	Pending
	Held
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Held:
		return "Held"
	}
	return "Idle"
}

// Sink receives finalized shot records.
type Sink interface {
	Append(rec core.ShotRecord) error
}

// PendingShot is the in-flight draft between a qualifying release and its finalization.
type PendingShot struct {
	Draft             core.ShotRecord
	ReachedGoalZone   bool
	GoalieHit         bool
	GoalieHitPosition *core.Vec3
	DetectedAt        time.Time
	// LeftGoalZone is set when the puck left the zone at ExitSimTime.
	LeftGoalZone bool
	ExitSimTime  float64
}

// Dependencies holds the collaborators shared by every tracker.
type Dependencies struct {
	Classifier geo.Classifier
	ZoneRadius float64
	Roster     roster.Lookup
	Sink       Sink
	// Game returns the current match state, used to stamp period and overtime.
	Game func() core.GameState
	// Now is the wall clock used for record timestamps.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Tracker owns the pending shot of a single puck.
type Tracker struct {
	puck core.PuckID
	deps Dependencies

	mu      sync.Mutex
	pending *PendingShot
	zone    *geo.ZoneMonitor
}

// New creates an idle tracker for puck.
func New(puck core.PuckID, deps Dependencies) *Tracker {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Game == nil {
		deps.Game = func() core.GameState { return core.GameState{} }
	}
	if deps.ZoneRadius <= 0 {
		deps.ZoneRadius = geo.DefaultZoneRadius
	}
	deps.Logger = deps.Logger.With().Uint64("puck", uint64(puck)).Logger()
	return &Tracker{puck: puck, deps: deps}
}

// Puck returns the id of the tracked puck.
func (t *Tracker) Puck() core.PuckID {
	return t.puck
}

// State returns Idle, Pending or Held.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.pending == nil:
		return Idle
	case t.pending.LeftGoalZone:
		return Held
	}
	return Pending
}

// Pending returns a copy of the pending shot, if any.
func (t *Tracker) Pending() (PendingShot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return PendingShot{}, false
	}
	p := *t.pending
	p.Draft = p.Draft.Clone()
	if p.GoalieHitPosition != nil {
		pos := *p.GoalieHitPosition
		p.GoalieHitPosition = &pos
	}
	return p, true
}

// OnStickReleased opens a pending shot if the puck leaves the stick towards the
// opposing goal. A release that does not qualify leaves the tracker untouched.
func (t *Tracker) OnStickReleased(puck core.PuckState, playerID core.PlayerID) error {
	if puck.IsReplay {
		return nil
	}

	shooter, ok := t.deps.Roster.Player(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	if !shooter.HasIdentity() {
		return ErrMissingIdentity
	}

	target, ok := t.deps.Classifier.Classify(puck.Position, puck.Velocity)
	if !ok {
		return nil
	}
	if target == shooter.Team {
		t.deps.Logger.Debug().Str("player", shooter.Username).Msg("Release towards own goal ignored")
		return nil
	}
	center, _ := t.deps.Classifier.Goals.Position(target)

	game := t.deps.Game()
	now := t.deps.Now()

	draft := core.ShotRecord{
		Shooter: core.Shooter{
			Name:   shooter.Username,
			Number: shooter.Number,
			Team:   shooter.Team,
		},
		ShooterHand:     shooter.Hand,
		ShooterPosition: shooter.Position,
		PuckPosition:    puck.Position,
		ShotSpeed:       puck.Velocity.Length(),
		Direction:       puck.Velocity.Normalized(),
		Type:            core.ShotTypeShot,
		TargetGoal:      target,
		Timestamp:       now,
		Period:          game.Period,
		IsOvertime:      game.IsOvertime,
	}
	if goalie, ok := t.deps.Roster.Goalie(target); ok {
		draft.Goalie = roster.GoalieOf(goalie)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = &PendingShot{Draft: draft, DetectedAt: now}
	t.zone = geo.NewZoneMonitor(center, t.deps.ZoneRadius)

	t.deps.Logger.Debug().
		Str("player", shooter.Username).
		Stringer("target", target).
		Float64("speed", draft.ShotSpeed).
		Msg("Pending shot opened")
	return nil
}

// OnStickTouch discards the pending shot, held or not. Any stick touching the
// puck ends the attempt. Callers settle shots from earlier steps first.
func (t *Tracker) OnStickTouch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.deps.Logger.Debug().Msg("Pending shot cleared by stick touch")
	}
	t.clear()
}

// OnCollision registers a goalie hit when the puck strikes the goalie
// defending the target goal while a shot is pending.
func (t *Tracker) OnCollision(puck core.PuckState, other core.ContactSource) {
	if puck.IsReplay || !other.HasOwner() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return
	}
	p, ok := t.deps.Roster.Player(other.Owner)
	if !ok || p.Role != core.RoleGoalie || p.Team != t.pending.Draft.TargetGoal {
		return
	}

	if !t.pending.GoalieHit {
		pos := puck.Position
		t.pending.GoalieHit = true
		t.pending.GoalieHitPosition = &pos
	}
	// the live collision is ground truth for who is in net
	if p.Username != "" {
		t.pending.Draft.Goalie = roster.GoalieOf(p)
	}
	t.deps.Logger.Debug().Str("goalie", p.Username).Stringer("contact", other.Kind).Msg("Goalie hit registered")
}

// OnTick feeds the puck position to the goal zone monitor. A shot held from an
// earlier step is emitted first. When the puck leaves the zone the shot is
// held until the simulation moves past the current step. Ticks outside active
// play and replay pucks never move the zone.
func (t *Tracker) OnTick(puck core.PuckState, game core.GameState) (core.ShotRecord, bool) {
	if puck.IsReplay {
		return core.ShotRecord{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.settle(game.SimTime); ok {
		return rec, true
	}
	if game.Phase != core.PhasePlaying || t.pending == nil || t.pending.LeftGoalZone {
		return core.ShotRecord{}, false
	}

	exited := t.zone.Update(puck.Position)
	if t.zone.Reached() {
		t.pending.ReachedGoalZone = true
	}
	if exited {
		t.pending.LeftGoalZone = true
		t.pending.ExitSimTime = game.SimTime
		t.deps.Logger.Debug().Float64("simTime", game.SimTime).Msg("Puck left goal zone, shot held")
	}
	return core.ShotRecord{}, false
}

// Settle emits a held shot once simTime is past the step the puck left the
// goal zone in.
func (t *Tracker) Settle(simTime float64) (core.ShotRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settle(simTime)
}

// Flush emits a held shot regardless of the simulation clock. It is used when
// the step is known to be over: shutdown, session rotation or puck removal.
// A shot that has not left the goal zone stays pending.
func (t *Tracker) Flush() (core.ShotRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil || !t.pending.LeftGoalZone {
		return core.ShotRecord{}, false
	}
	return t.finalizeExit(), true
}

func (t *Tracker) settle(simTime float64) (core.ShotRecord, bool) {
	if t.pending == nil || !t.pending.LeftGoalZone || simTime <= t.pending.ExitSimTime {
		return core.ShotRecord{}, false
	}
	return t.finalizeExit(), true
}

// finalizeExit emits a shot that left the goal zone. Caller holds t.mu.
func (t *Tracker) finalizeExit() core.ShotRecord {
	shotType := core.ShotTypeShot
	if t.pending.GoalieHit {
		shotType = core.ShotTypeOnGoal
	}
	return t.finalize(shotType, core.TeamNone)
}

// FinalizeGoal upgrades the pending shot to a goal scored on side, bypassing
// the goal zone. A shot held in the same step is upgraded too. It returns
// false if no shot is pending.
func (t *Tracker) FinalizeGoal(side core.Team) (core.ShotRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return core.ShotRecord{}, false
	}
	return t.finalize(core.ShotTypeGoal, side), true
}

// Reset drops any pending shot without emitting it.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clear()
}

// finalize emits the pending draft and returns to Idle. Caller holds t.mu.
func (t *Tracker) finalize(shotType core.ShotType, side core.Team) core.ShotRecord {
	p := t.pending
	rec := p.Draft

	rec.Type = shotType
	if side != core.TeamNone {
		if side != rec.TargetGoal {
			t.deps.Logger.Debug().
				Stringer("inferred", rec.TargetGoal).
				Stringer("scored", side).
				Msg("Goal scored on a different side than inferred")
		}
		rec.TargetGoal = side
	}
	if shotType != core.ShotTypeShot && p.GoalieHitPosition != nil {
		pos := *p.GoalieHitPosition
		rec.GoalieHitPosition = &pos
	}
	if rec.Goalie == nil {
		if goalie, ok := t.deps.Roster.Goalie(rec.TargetGoal); ok {
			rec.Goalie = roster.GoalieOf(goalie)
		}
	}

	t.clear()

	if t.deps.Sink != nil {
		if err := t.deps.Sink.Append(rec); err != nil {
			t.deps.Logger.Error().Err(err).Msg("Failed to persist shot")
		}
	}
	t.deps.Logger.Info().
		Str("player", rec.Shooter.Name).
		Stringer("type", rec.Type).
		Stringer("target", rec.TargetGoal).
		Msg("Shot recorded")
	return rec
}

func (t *Tracker) clear() {
	t.pending = nil
	t.zone = nil
}
