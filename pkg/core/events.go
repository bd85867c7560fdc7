package core

import "fmt"

// PuckID identifies a puck instance owned by the host
type PuckID uint64

// PlayerID identifies a connected player owned by the host
type PlayerID uint64

// NumberUnset marks a player whose jersey number has not been assigned yet.
const NumberUnset = -1

// Player is the host's view of a connected player
type Player struct {
	ID       PlayerID
	Username string
	Number   int
	Team     Team
	Role     Role
	Hand     Handedness
	Position Vec3 // current body position
}

// HasIdentity reports whether every field needed to attribute a shot is set.
func (p Player) HasIdentity() bool {
	return p.Username != "" && p.Number != NumberUnset && p.Team != TeamNone
}

// PuckState is the physics snapshot of a puck at the moment an event was raised
type PuckState struct {
	ID        PuckID
	Position  Vec3
	Velocity  Vec3
	ShotSpeed float64 // host's stored shot speed value, not recomputed here
	IsReplay  bool    // replay/ghost instance, never tracked
}

// GamePhase is the host's match phase
type GamePhase uint8

const (
	PhaseNone GamePhase = iota
	PhaseWarmup
	PhaseFaceOff
	PhasePlaying
	PhaseBlueScore
	PhaseRedScore
	PhaseReplay
	PhasePeriodOver
	PhaseGameOver
)

var phaseNames = map[GamePhase]string{
	PhaseNone:       "None",
	PhaseWarmup:     "Warmup",
	PhaseFaceOff:    "FaceOff",
	PhasePlaying:    "Playing",
	PhaseBlueScore:  "BlueScore",
	PhaseRedScore:   "RedScore",
	PhaseReplay:     "Replay",
	PhasePeriodOver: "PeriodOver",
	PhaseGameOver:   "GameOver",
}

func (p GamePhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("GamePhase(%d)", uint8(p))
}

// ParseGamePhase converts the host's phase name to a GamePhase.
func ParseGamePhase(s string) (GamePhase, error) {
	for phase, name := range phaseNames {
		if name == s {
			return phase, nil
		}
	}
	return PhaseNone, fmt.Errorf("unknown game phase %q", s)
}

// GameState is the match state delivered with ticks and phase changes
type GameState struct {
	Phase      GamePhase
	Period     int
	IsOvertime bool
	SimTime    float64 // host simulation clock, seconds
}

// ContactKind is the tag of a ContactSource
type ContactKind uint8

const (
	ContactOther ContactKind = iota
	ContactStick
	ContactBody
)

func (k ContactKind) String() string {
	switch k {
	case ContactStick:
		return "stick"
	case ContactBody:
		return "body"
	default:
		return "other"
	}
}

// ContactSource is what a puck collided with, resolved once at the host boundary.
// Owner is only meaningful for ContactStick and ContactBody.
type ContactSource struct {
	Kind  ContactKind
	Owner PlayerID
}

// StickContact is a collision with the stick owned by owner.
func StickContact(owner PlayerID) ContactSource {
	return ContactSource{Kind: ContactStick, Owner: owner}
}

// BodyContact is a collision with the body of owner.
func BodyContact(owner PlayerID) ContactSource {
	return ContactSource{Kind: ContactBody, Owner: owner}
}

// OtherContact is a collision with boards, posts, nets or anything without a player.
func OtherContact() ContactSource {
	return ContactSource{Kind: ContactOther}
}

// HasOwner reports whether the contact resolves to a player.
func (c ContactSource) HasOwner() bool {
	return c.Kind == ContactStick || c.Kind == ContactBody
}

// Contact is one entry of a puck's player contact history
type Contact struct {
	PlayerID PlayerID
	Kind     ContactKind
	SimTime  float64
}

// Tick is delivered once per simulation step per puck
type Tick struct {
	Game GameState
	Puck PuckState
}

// StickReleased is raised when a stick stops touching the puck
type StickReleased struct {
	Puck    PuckState
	Player  PlayerID
	SimTime float64
}

// StickTouch is raised when a stick starts touching the puck
type StickTouch struct {
	Puck    PuckState
	Player  PlayerID
	SimTime float64
}

// Collision is raised when the puck collides with anything other than a stick blade in control
type Collision struct {
	Puck    PuckState
	Other   ContactSource
	SimTime float64
}

// GoalScored is the host's authoritative goal signal. Goal is the side scored upon.
type GoalScored struct {
	Goal    Team
	Puck    PuckState
	SimTime float64
}

// PhaseChanged is raised on every game phase transition
type PhaseChanged struct {
	Game         GameState
	FirstFaceOff bool // first face-off of a new match
}
