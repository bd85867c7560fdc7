// Package geo holds the rink geometry used to classify puck releases:
// target goal inference from puck motion and the goal proximity zone.
package geo

import (
	"fmt"

	"github.com/puckstats/shotrecorder/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Default classifier thresholds.
const (
	// DefaultMinSpeed is the velocity magnitude below which a release has no directional intent.
	DefaultMinSpeed = 0.1
	// DefaultConeDot is the minimum alignment with a goal (cos 60°).
	DefaultConeDot = 0.5
	// DefaultZoneRadius is the radius of the goal proximity zone.
	DefaultZoneRadius = 3.5
)

// Goals holds the fixed reference positions of both goals, keyed by the team defending them.
type Goals struct {
	Blue core.Vec3
	Red  core.Vec3
}

// Position returns the reference position of the goal defended by team.
func (g Goals) Position(team core.Team) (core.Vec3, bool) {
	switch team {
	case core.TeamBlue:
		return g.Blue, true
	case core.TeamRed:
		return g.Red, true
	default:
		return core.Vec3{}, false
	}
}

// Classifier infers the goal a puck is travelling towards.
type Classifier struct {
	Goals    Goals
	MinSpeed float64
	ConeDot  float64
}

// NewClassifier returns a classifier with the default thresholds.
func NewClassifier(goals Goals) Classifier {
	return Classifier{Goals: goals, MinSpeed: DefaultMinSpeed, ConeDot: DefaultConeDot}
}

// Classify returns the goal the puck is moving towards, if any.
func (c Classifier) Classify(pos, vel core.Vec3) (core.Team, bool) {
	if vel.Length() < c.MinSpeed {
		return core.TeamNone, false
	}

	blue := Alignment(pos, vel, c.Goals.Blue) > c.ConeDot
	red := Alignment(pos, vel, c.Goals.Red) > c.ConeDot

	switch {
	case blue && !red:
		return core.TeamBlue, true
	case red && !blue:
		return core.TeamRed, true
	default:
		return core.TeamNone, false
	}
}

// Classify is Classifier.Classify with the default thresholds.
func Classify(pos, vel core.Vec3, goals Goals) (core.Team, bool) {
	return NewClassifier(goals).Classify(pos, vel)
}

// Alignment is the dot product between the direction of travel and the
// direction from pos to goal. A puck sitting on the goal position has alignment 0.
func Alignment(pos, vel, goal core.Vec3) float64 {
	toGoal := goal.Sub(pos)
	if toGoal.Length() == 0 || vel.Length() == 0 {
		return 0
	}
	return vel.Normalized().Dot(toGoal.Normalized())
}

// PointXYZ converts a rink position to a simplefeatures XYZ point for storage.
// Non-finite coordinates are rejected.
func PointXYZ(v core.Vec3) (geom.Point, error) {
	p, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Y},
			Z:    v.Z,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("invalid position %v: %w", v, err)
	}
	return p, nil
}

// Vec3FromPoint is the inverse of PointXYZ. Empty points return false.
func Vec3FromPoint(p geom.Point) (core.Vec3, bool) {
	coords, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}, false
	}
	return core.Vec3{X: coords.X, Y: coords.Y, Z: coords.Z}, true
}
