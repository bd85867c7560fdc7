package core

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in rink space (Y up, metres)
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Length returns the euclidean magnitude of v.
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the euclidean distance between v and o.
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// Normalized returns the unit vector of v, or the zero vector if v has no length.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Team identifies a side of the rink. A goal is named after the team defending it.
type Team uint8

const (
	TeamNone Team = iota
	TeamBlue
	TeamRed
)

func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "Blue"
	case TeamRed:
		return "Red"
	default:
		return "None"
	}
}

// Opponent returns the other team. TeamNone has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case TeamBlue:
		return TeamRed
	case TeamRed:
		return TeamBlue
	default:
		return TeamNone
	}
}

// ParseTeam converts a team name as the host spells it to a Team.
func ParseTeam(s string) (Team, error) {
	switch s {
	case "Blue", "blue", "BLUE":
		return TeamBlue, nil
	case "Red", "red", "RED":
		return TeamRed, nil
	default:
		return TeamNone, fmt.Errorf("unknown team %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Team) MarshalText() ([]byte, error) {
	if t == TeamNone {
		return nil, fmt.Errorf("team is not set")
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Team) UnmarshalText(b []byte) error {
	parsed, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Role is the position a player is spawned in
type Role uint8

const (
	RoleNone Role = iota
	RoleAttacker
	RoleGoalie
)

func (r Role) String() string {
	switch r {
	case RoleAttacker:
		return "Attacker"
	case RoleGoalie:
		return "Goalie"
	default:
		return "None"
	}
}

// Handedness is the stick hand of a player. Empty means unknown.
type Handedness string

const (
	HandUnknown Handedness = ""
	HandLeft    Handedness = "Left"
	HandRight   Handedness = "Right"
)

// ShotType is the final classification of a shot record
type ShotType uint8

const (
	ShotTypeShot ShotType = iota
	ShotTypeOnGoal
	ShotTypeGoal
)

func (s ShotType) String() string {
	switch s {
	case ShotTypeOnGoal:
		return "Shot on Goal"
	case ShotTypeGoal:
		return "Goal"
	default:
		return "Shot"
	}
}

// ParseShotType is the inverse of ShotType.String.
func ParseShotType(s string) (ShotType, error) {
	switch s {
	case "Shot":
		return ShotTypeShot, nil
	case "Shot on Goal":
		return ShotTypeOnGoal, nil
	case "Goal":
		return ShotTypeGoal, nil
	default:
		return ShotTypeShot, fmt.Errorf("unknown shot type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ShotType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ShotType) UnmarshalText(b []byte) error {
	parsed, err := ParseShotType(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
