package core

import (
	"time"

	"github.com/google/uuid"
)

// Goalie identifies the goalie defending the target goal at the time of a shot
type Goalie struct {
	Name string
	Hand Handedness
}

// Shooter identifies the player a shot is attributed to
type Shooter struct {
	Name   string
	Number int
	Team   Team
}

// ShotRecord is a finalized, classified shot. It is never mutated once appended to a session.
type ShotRecord struct {
	Shooter           Shooter
	ShooterHand       Handedness
	Goalie            *Goalie
	ShooterPosition   Vec3
	PuckPosition      Vec3
	ShotSpeed         float64
	Direction         Vec3
	Type              ShotType
	TargetGoal        Team
	Timestamp         time.Time
	Period            int
	IsOvertime        bool
	GoalieHitPosition *Vec3 // only for ShotTypeOnGoal and upgraded goals
}

// Clone returns a deep copy of the record.
func (r ShotRecord) Clone() ShotRecord {
	if r.Goalie != nil {
		g := *r.Goalie
		r.Goalie = &g
	}
	if r.GoalieHitPosition != nil {
		p := *r.GoalieHitPosition
		r.GoalieHitPosition = &p
	}
	return r
}

// PhysicsConstants is the puck physics configuration of the host, captured once per process
type PhysicsConstants struct {
	Gravity         Vec3    `json:"gravity"`
	PuckMass        float64 `json:"puckMass"`
	PuckDrag        float64 `json:"puckDrag"`
	PuckAngularDrag float64 `json:"puckAngularDrag"`
	MaxSpeed        float64 `json:"maxSpeed"`
	MaxAngularSpeed float64 `json:"maxAngularSpeed"`
}

// Session is one match worth of shots
type Session struct {
	ID         uuid.UUID
	ServerName string
	Start      time.Time
	Physics    *PhysicsConstants
	Shots      []ShotRecord
}

// NewSession creates an empty session starting at start.
func NewSession(serverName string, start time.Time, physics *PhysicsConstants) *Session {
	return &Session{
		ID:         uuid.New(),
		ServerName: serverName,
		Start:      start,
		Physics:    physics,
		Shots:      make([]ShotRecord, 0),
	}
}

// Clone returns a deep copy of the session, safe to hand to storage backends.
func (s *Session) Clone() Session {
	out := Session{
		ID:         s.ID,
		ServerName: s.ServerName,
		Start:      s.Start,
		Shots:      make([]ShotRecord, len(s.Shots)),
	}
	if s.Physics != nil {
		p := *s.Physics
		out.Physics = &p
	}
	for i, r := range s.Shots {
		out.Shots[i] = r.Clone()
	}
	return out
}
