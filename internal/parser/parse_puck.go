package parser

import (
	"encoding/json"
	"fmt"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// ParseTick parses a :TICK: payload.
func (p *Parser) ParseTick(args []string) (core.Tick, error) {
	var raw struct {
		SimTime float64  `json:"simTime"`
		Game    gameJSON `json:"game"`
		Puck    puckJSON `json:"puck"`
	}
	if err := p.decode(":TICK:", args, &raw); err != nil {
		return core.Tick{}, err
	}

	game, err := raw.Game.toCore(raw.SimTime)
	if err != nil {
		return core.Tick{}, fmt.Errorf("error parsing game state: %w", err)
	}
	puck, err := raw.Puck.toCore()
	if err != nil {
		return core.Tick{}, err
	}
	return core.Tick{Game: game, Puck: puck}, nil
}

type stickJSON struct {
	SimTime float64     `json:"simTime"`
	Puck    puckJSON    `json:"puck"`
	Player  json.Number `json:"player"`
}

func (p *Parser) parseStick(command string, args []string) (core.PuckState, core.PlayerID, float64, error) {
	var raw stickJSON
	if err := p.decode(command, args, &raw); err != nil {
		return core.PuckState{}, 0, 0, err
	}
	puck, err := raw.Puck.toCore()
	if err != nil {
		return core.PuckState{}, 0, 0, err
	}
	player, err := parseUintFromFloat(raw.Player.String())
	if err != nil {
		return core.PuckState{}, 0, 0, fmt.Errorf("error converting player id: %w", err)
	}
	return puck, core.PlayerID(player), raw.SimTime, nil
}

// ParseStickReleased parses a :STICK:RELEASED: payload.
func (p *Parser) ParseStickReleased(args []string) (core.StickReleased, error) {
	puck, player, simTime, err := p.parseStick(":STICK:RELEASED:", args)
	if err != nil {
		return core.StickReleased{}, err
	}
	return core.StickReleased{Puck: puck, Player: player, SimTime: simTime}, nil
}

// ParseStickTouch parses a :STICK:TOUCH: payload.
func (p *Parser) ParseStickTouch(args []string) (core.StickTouch, error) {
	puck, player, simTime, err := p.parseStick(":STICK:TOUCH:", args)
	if err != nil {
		return core.StickTouch{}, err
	}
	return core.StickTouch{Puck: puck, Player: player, SimTime: simTime}, nil
}

// ParseCollision parses a :COLLISION: payload.
func (p *Parser) ParseCollision(args []string) (core.Collision, error) {
	var raw struct {
		SimTime float64     `json:"simTime"`
		Puck    puckJSON    `json:"puck"`
		Other   contactJSON `json:"other"`
	}
	if err := p.decode(":COLLISION:", args, &raw); err != nil {
		return core.Collision{}, err
	}

	puck, err := raw.Puck.toCore()
	if err != nil {
		return core.Collision{}, err
	}
	other, err := raw.Other.toCore()
	if err != nil {
		return core.Collision{}, err
	}
	return core.Collision{Puck: puck, Other: other, SimTime: raw.SimTime}, nil
}

// ParseGoalScored parses a :GOAL:SCORED: payload. The goal must name a team.
func (p *Parser) ParseGoalScored(args []string) (core.GoalScored, error) {
	var raw struct {
		SimTime float64  `json:"simTime"`
		Goal    string   `json:"goal"`
		Puck    puckJSON `json:"puck"`
	}
	if err := p.decode(":GOAL:SCORED:", args, &raw); err != nil {
		return core.GoalScored{}, err
	}

	goal, err := core.ParseTeam(raw.Goal)
	if err != nil {
		return core.GoalScored{}, fmt.Errorf("error parsing scored-on goal: %w", err)
	}
	puck, err := raw.Puck.toCore()
	if err != nil {
		return core.GoalScored{}, err
	}
	return core.GoalScored{Goal: goal, Puck: puck, SimTime: raw.SimTime}, nil
}

// ParsePuckRemoved parses a :PUCK:REMOVED: payload.
func (p *Parser) ParsePuckRemoved(args []string) (core.PuckID, error) {
	var raw idJSON
	if err := p.decode(":PUCK:REMOVED:", args, &raw); err != nil {
		return 0, err
	}
	id, err := parseUintFromFloat(raw.ID.String())
	if err != nil {
		return 0, fmt.Errorf("error converting puck id: %w", err)
	}
	return core.PuckID(id), nil
}
