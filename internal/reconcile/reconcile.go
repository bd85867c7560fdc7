// Package reconcile turns authoritative goal signals into shot records.
//
// A goal either upgrades the pending shot of the scoring puck or, when none
// exists, is attributed to the most recent attacking contact on that puck.
package reconcile

import (
	"sync"
	"time"

	"github.com/puckstats/shotrecorder/internal/roster"
	"github.com/puckstats/shotrecorder/internal/tracker"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
)

// DefaultCooldown is the simulated time after an accepted goal during which
// further goal signals are duplicates.
const DefaultCooldown = 15 * time.Second

// ContactHistory answers which players recently touched a puck.
type ContactHistory interface {
	RecentContacts(puck core.PuckID) []core.Contact
}

// Finalizer is the part of a tracker the reconciler drives.
type Finalizer interface {
	FinalizeGoal(side core.Team) (core.ShotRecord, bool)
}

// Config wires a Reconciler.
type Config struct {
	// Tracker returns the tracker of a puck, if one exists.
	Tracker  func(core.PuckID) (Finalizer, bool)
	Contacts ContactHistory
	Roster   roster.Lookup
	Sink     tracker.Sink
	Game     func() core.GameState
	Now      func() time.Time
	Cooldown time.Duration
	Logger   zerolog.Logger
}

// Reconciler applies goal signals. Only accepted goals start the cooldown.
type Reconciler struct {
	cfg Config

	mu       sync.Mutex
	lastGoal float64
	hasGoal  bool
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Game == nil {
		cfg.Game = func() core.GameState { return core.GameState{} }
	}
	if cfg.Tracker == nil {
		cfg.Tracker = func(core.PuckID) (Finalizer, bool) { return nil, false }
	}
	return &Reconciler{cfg: cfg}
}

// Result describes what a goal signal produced.
type Result uint8

const (
	Dropped Result = iota
	Duplicate
	Upgraded
	Attributed
)

func (r Result) String() string {
	switch r {
	case Duplicate:
		return "duplicate"
	case Upgraded:
		return "upgraded"
	case Attributed:
		return "attributed"
	default:
		return "dropped"
	}
}

// OnGoalScored handles a goal against ev.Goal and reports whether a record was produced.
func (r *Reconciler) OnGoalScored(ev core.GoalScored) bool {
	res := r.Apply(ev)
	return res == Upgraded || res == Attributed
}

// Apply is OnGoalScored with the detailed outcome.
func (r *Reconciler) Apply(ev core.GoalScored) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.cfg.Logger.With().Uint64("puck", uint64(ev.Puck.ID)).Stringer("goal", ev.Goal).Logger()

	if r.inCooldown(ev.SimTime) {
		log.Debug().Float64("simTime", ev.SimTime).Float64("lastGoal", r.lastGoal).Msg("Duplicate goal signal suppressed")
		return Duplicate
	}
	if ev.Puck.IsReplay {
		return Dropped
	}

	if t, ok := r.cfg.Tracker(ev.Puck.ID); ok {
		if _, ok := t.FinalizeGoal(ev.Goal); ok {
			r.accept(ev.SimTime)
			return Upgraded
		}
	}

	rec, ok := r.attribute(ev, log)
	if !ok {
		return Dropped
	}
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.Append(rec); err != nil {
			log.Error().Err(err).Msg("Failed to persist goal")
		}
	}
	r.accept(ev.SimTime)
	log.Info().Str("player", rec.Shooter.Name).Msg("Goal attributed from contact history")
	return Attributed
}

// Reset forgets the last accepted goal, e.g. when a new session starts.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasGoal = false
	r.lastGoal = 0
}

func (r *Reconciler) inCooldown(simTime float64) bool {
	if !r.hasGoal {
		return false
	}
	elapsed := simTime - r.lastGoal
	// a clock that went backwards belongs to a new game
	return elapsed >= 0 && elapsed < r.cfg.Cooldown.Seconds()
}

func (r *Reconciler) accept(simTime float64) {
	r.hasGoal = true
	r.lastGoal = simTime
}

// attribute builds a goal record from the newest contact by the attacking team.
// An older teammate's touch never stands in for that contact: if its player
// has no complete identity the goal is dropped.
func (r *Reconciler) attribute(ev core.GoalScored, log zerolog.Logger) (core.ShotRecord, bool) {
	if r.cfg.Contacts == nil || r.cfg.Roster == nil {
		return core.ShotRecord{}, false
	}
	attacking := ev.Goal.Opponent()

	contacts := r.cfg.Contacts.RecentContacts(ev.Puck.ID)
	var scorer core.Player
	found := false
	for i := len(contacts) - 1; i >= 0; i-- {
		p, ok := r.cfg.Roster.Player(contacts[i].PlayerID)
		if !ok || p.Team != attacking {
			continue
		}
		if !p.HasIdentity() {
			log.Info().
				Uint64("player", uint64(p.ID)).
				Float64("contactTime", contacts[i].SimTime).
				Msg("Last attacking contact has no identity, goal dropped")
			return core.ShotRecord{}, false
		}
		scorer, found = p, true
		break
	}
	if !found {
		log.Debug().Int("contacts", len(contacts)).Msg("No attacking contact for goal, dropped")
		return core.ShotRecord{}, false
	}

	game := r.cfg.Game()
	rec := core.ShotRecord{
		Shooter: core.Shooter{
			Name:   scorer.Username,
			Number: scorer.Number,
			Team:   scorer.Team,
		},
		ShooterHand:     scorer.Hand,
		ShooterPosition: scorer.Position,
		PuckPosition:    ev.Puck.Position,
		// the host's stored shot speed, not the release speed
		ShotSpeed:  ev.Puck.ShotSpeed,
		Direction:  ev.Puck.Velocity.Normalized(),
		Type:       core.ShotTypeGoal,
		TargetGoal: ev.Goal,
		Timestamp:  r.cfg.Now(),
		Period:     game.Period,
		IsOvertime: game.IsOvertime,
	}
	if goalie, ok := r.cfg.Roster.Goalie(ev.Goal); ok {
		rec.Goalie = roster.GoalieOf(goalie)
	}
	return rec, true
}
