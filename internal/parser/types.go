package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// wire types mirror the host payloads; conversion to core types happens in one place each.

type puckJSON struct {
	ID        json.Number `json:"id"`
	Position  core.Vec3   `json:"position"`
	Velocity  core.Vec3   `json:"velocity"`
	ShotSpeed float64     `json:"shotSpeed"`
	Replay    bool        `json:"replay"`
}

func (w puckJSON) toCore() (core.PuckState, error) {
	id, err := parseUintFromFloat(w.ID.String())
	if err != nil {
		return core.PuckState{}, fmt.Errorf("error converting puck id: %w", err)
	}
	return core.PuckState{
		ID:        core.PuckID(id),
		Position:  w.Position,
		Velocity:  w.Velocity,
		ShotSpeed: w.ShotSpeed,
		IsReplay:  w.Replay,
	}, nil
}

type gameJSON struct {
	Phase    string  `json:"phase"`
	Period   float64 `json:"period"`
	Overtime bool    `json:"overtime"`
}

func (w gameJSON) toCore(simTime float64) (core.GameState, error) {
	phase, err := core.ParseGamePhase(w.Phase)
	if err != nil {
		return core.GameState{}, err
	}
	return core.GameState{
		Phase:      phase,
		Period:     int(w.Period),
		IsOvertime: w.Overtime,
		SimTime:    simTime,
	}, nil
}

type contactJSON struct {
	Kind  string       `json:"kind"`
	Owner *json.Number `json:"owner"`
}

// toCore resolves the collision partner. A stick or body without an owner
// degrades to OtherContact so it can never be attributed.
func (w contactJSON) toCore() (core.ContactSource, error) {
	var kind core.ContactKind
	switch strings.ToLower(w.Kind) {
	case "stick":
		kind = core.ContactStick
	case "body", "player":
		kind = core.ContactBody
	case "", "other":
		return core.OtherContact(), nil
	default:
		return core.ContactSource{}, fmt.Errorf("unknown contact kind %q", w.Kind)
	}
	if w.Owner == nil {
		return core.OtherContact(), nil
	}
	owner, err := parseUintFromFloat(w.Owner.String())
	if err != nil {
		return core.ContactSource{}, fmt.Errorf("error converting contact owner: %w", err)
	}
	return core.ContactSource{Kind: kind, Owner: core.PlayerID(owner)}, nil
}

type playerJSON struct {
	ID       json.Number  `json:"id"`
	Username string       `json:"username"`
	Number   *json.Number `json:"number"`
	Team     string       `json:"team"`
	Role     string       `json:"role"`
	Hand     *string      `json:"hand"`
	Position core.Vec3    `json:"position"`
}

type idJSON struct {
	ID json.Number `json:"id"`
}

// parseTeamLenient maps anything that is not a known team to TeamNone,
// which is how the host reports spectators.
func parseTeamLenient(s string) core.Team {
	team, err := core.ParseTeam(s)
	if err != nil {
		return core.TeamNone
	}
	return team
}

func parseRole(s string) core.Role {
	switch strings.ToLower(s) {
	case "goalie", "g":
		return core.RoleGoalie
	case "attacker", "skater", "a":
		return core.RoleAttacker
	default:
		return core.RoleNone
	}
}

func parseHand(s *string) core.Handedness {
	if s == nil {
		return core.HandUnknown
	}
	switch strings.ToLower(*s) {
	case "left":
		return core.HandLeft
	case "right":
		return core.HandRight
	default:
		return core.HandUnknown
	}
}
