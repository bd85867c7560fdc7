package jsonfile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// Document is the root of a session file
type Document struct {
	SessionStart time.Time    `json:"SessionStart"`
	Physics      *PhysicsJSON `json:"Physics"`
	Shots        []ShotJSON   `json:"Shots"`
}

// PhysicsJSON is the flattened physics constants block
type PhysicsJSON struct {
	GravityX        float64 `json:"GravityX"`
	GravityY        float64 `json:"GravityY"`
	GravityZ        float64 `json:"GravityZ"`
	PuckMass        float64 `json:"PuckMass"`
	PuckDrag        float64 `json:"PuckDrag"`
	PuckAngularDrag float64 `json:"PuckAngularDrag"`
	MaxSpeed        float64 `json:"MaxSpeed"`
	MaxAngularSpeed float64 `json:"MaxAngularSpeed"`
}

// ShotJSON is one shot; vectors are flattened to X/Y/Z columns.
type ShotJSON struct {
	PlayerName         string        `json:"PlayerName"`
	PlayerNumber       int           `json:"PlayerNumber"`
	Team               core.Team     `json:"Team"`
	GoalieName         *string       `json:"GoalieName"`
	GoalieHand         *string       `json:"GoalieHand"`
	PlayerHand         *string       `json:"PlayerHand"`
	PlayerPositionX    float64       `json:"PlayerPositionX"`
	PlayerPositionY    float64       `json:"PlayerPositionY"`
	PlayerPositionZ    float64       `json:"PlayerPositionZ"`
	PuckPositionX      float64       `json:"PuckPositionX"`
	PuckPositionY      float64       `json:"PuckPositionY"`
	PuckPositionZ      float64       `json:"PuckPositionZ"`
	ShotSpeed          float64       `json:"ShotSpeed"`
	ShotType           core.ShotType `json:"ShotType"`
	TargetGoal         core.Team     `json:"TargetGoal"`
	Timestamp          time.Time     `json:"Timestamp"`
	DirectionX         float64       `json:"DirectionX"`
	DirectionY         float64       `json:"DirectionY"`
	DirectionZ         float64       `json:"DirectionZ"`
	GoalieHitPositionX *float64      `json:"GoalieHitPositionX"`
	GoalieHitPositionY *float64      `json:"GoalieHitPositionY"`
	GoalieHitPositionZ *float64      `json:"GoalieHitPositionZ"`
	Period             int           `json:"Period"`
	IsOvertime         bool          `json:"IsOvertime"`
}

// Encode converts a session to its file representation.
func Encode(s *core.Session) Document {
	doc := Document{
		SessionStart: s.Start,
		Shots:        make([]ShotJSON, 0, len(s.Shots)),
	}
	if s.Physics != nil {
		p := s.Physics
		doc.Physics = &PhysicsJSON{
			GravityX:        p.Gravity.X,
			GravityY:        p.Gravity.Y,
			GravityZ:        p.Gravity.Z,
			PuckMass:        p.PuckMass,
			PuckDrag:        p.PuckDrag,
			PuckAngularDrag: p.PuckAngularDrag,
			MaxSpeed:        p.MaxSpeed,
			MaxAngularSpeed: p.MaxAngularSpeed,
		}
	}
	for _, r := range s.Shots {
		doc.Shots = append(doc.Shots, encodeShot(r))
	}
	return doc
}

func encodeShot(r core.ShotRecord) ShotJSON {
	out := ShotJSON{
		PlayerName:      r.Shooter.Name,
		PlayerNumber:    r.Shooter.Number,
		Team:            r.Shooter.Team,
		PlayerHand:      handPtr(r.ShooterHand),
		PlayerPositionX: r.ShooterPosition.X,
		PlayerPositionY: r.ShooterPosition.Y,
		PlayerPositionZ: r.ShooterPosition.Z,
		PuckPositionX:   r.PuckPosition.X,
		PuckPositionY:   r.PuckPosition.Y,
		PuckPositionZ:   r.PuckPosition.Z,
		ShotSpeed:       r.ShotSpeed,
		ShotType:        r.Type,
		TargetGoal:      r.TargetGoal,
		Timestamp:       r.Timestamp,
		DirectionX:      r.Direction.X,
		DirectionY:      r.Direction.Y,
		DirectionZ:      r.Direction.Z,
		Period:          r.Period,
		IsOvertime:      r.IsOvertime,
	}
	if r.Goalie != nil {
		name := r.Goalie.Name
		out.GoalieName = &name
		out.GoalieHand = handPtr(r.Goalie.Hand)
	}
	if hit := r.GoalieHitPosition; hit != nil {
		x, y, z := hit.X, hit.Y, hit.Z
		out.GoalieHitPositionX, out.GoalieHitPositionY, out.GoalieHitPositionZ = &x, &y, &z
	}
	return out
}

// Session converts the document back into a session. ID and server name are
// not part of the file and are left empty.
func (d Document) Session() (core.Session, error) {
	s := core.Session{
		Start: d.SessionStart,
		Shots: make([]core.ShotRecord, 0, len(d.Shots)),
	}
	if p := d.Physics; p != nil {
		s.Physics = &core.PhysicsConstants{
			Gravity:         core.Vec3{X: p.GravityX, Y: p.GravityY, Z: p.GravityZ},
			PuckMass:        p.PuckMass,
			PuckDrag:        p.PuckDrag,
			PuckAngularDrag: p.PuckAngularDrag,
			MaxSpeed:        p.MaxSpeed,
			MaxAngularSpeed: p.MaxAngularSpeed,
		}
	}
	for i, shot := range d.Shots {
		rec, err := shot.record()
		if err != nil {
			return core.Session{}, fmt.Errorf("shot %d: %w", i, err)
		}
		s.Shots = append(s.Shots, rec)
	}
	return s, nil
}

func (j ShotJSON) record() (core.ShotRecord, error) {
	rec := core.ShotRecord{
		Shooter: core.Shooter{
			Name:   j.PlayerName,
			Number: j.PlayerNumber,
			Team:   j.Team,
		},
		ShooterHand:     hand(j.PlayerHand),
		ShooterPosition: core.Vec3{X: j.PlayerPositionX, Y: j.PlayerPositionY, Z: j.PlayerPositionZ},
		PuckPosition:    core.Vec3{X: j.PuckPositionX, Y: j.PuckPositionY, Z: j.PuckPositionZ},
		ShotSpeed:       j.ShotSpeed,
		Direction:       core.Vec3{X: j.DirectionX, Y: j.DirectionY, Z: j.DirectionZ},
		Type:            j.ShotType,
		TargetGoal:      j.TargetGoal,
		Timestamp:       j.Timestamp,
		Period:          j.Period,
		IsOvertime:      j.IsOvertime,
	}
	if j.GoalieName != nil {
		rec.Goalie = &core.Goalie{Name: *j.GoalieName, Hand: hand(j.GoalieHand)}
	}
	x, y, z := j.GoalieHitPositionX, j.GoalieHitPositionY, j.GoalieHitPositionZ
	switch {
	case x != nil && y != nil && z != nil:
		rec.GoalieHitPosition = &core.Vec3{X: *x, Y: *y, Z: *z}
	case x != nil || y != nil || z != nil:
		return core.ShotRecord{}, fmt.Errorf("partial goalie hit position")
	}
	return rec, nil
}

// Marshal encodes a session as a JSON document.
func Marshal(s *core.Session, pretty bool) ([]byte, error) {
	doc := Encode(s)
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// Unmarshal decodes a JSON document into a session.
func Unmarshal(data []byte) (core.Session, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return doc.Session()
}

func handPtr(h core.Handedness) *string {
	if h == core.HandUnknown {
		return nil
	}
	s := string(h)
	return &s
}

func hand(s *string) core.Handedness {
	if s == nil {
		return core.HandUnknown
	}
	return core.Handedness(*s)
}
