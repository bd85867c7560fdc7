package parser

import (
	"fmt"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// ParsePhaseChanged parses a :PHASE:CHANGED: payload.
func (p *Parser) ParsePhaseChanged(args []string) (core.PhaseChanged, error) {
	var raw struct {
		SimTime      float64  `json:"simTime"`
		Game         gameJSON `json:"game"`
		FirstFaceOff bool     `json:"firstFaceOff"`
	}
	if err := p.decode(":PHASE:CHANGED:", args, &raw); err != nil {
		return core.PhaseChanged{}, err
	}

	game, err := raw.Game.toCore(raw.SimTime)
	if err != nil {
		return core.PhaseChanged{}, fmt.Errorf("error parsing game state: %w", err)
	}
	return core.PhaseChanged{Game: game, FirstFaceOff: raw.FirstFaceOff}, nil
}

// ParsePhysics parses a :PHYSICS: payload.
func (p *Parser) ParsePhysics(args []string) (core.PhysicsConstants, error) {
	var pc core.PhysicsConstants
	if err := p.decode(":PHYSICS:", args, &pc); err != nil {
		return core.PhysicsConstants{}, err
	}
	if pc.PuckMass < 0 || pc.MaxSpeed < 0 || pc.MaxAngularSpeed < 0 {
		return core.PhysicsConstants{}, fmt.Errorf("physics constants out of range: mass=%v maxSpeed=%v maxAngularSpeed=%v",
			pc.PuckMass, pc.MaxSpeed, pc.MaxAngularSpeed)
	}
	return pc, nil
}
