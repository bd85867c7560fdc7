package parser

import (
	"fmt"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// ParsePlayer parses a :PLAYER:UPDATE: payload. Incomplete identities are
// accepted; attribution skips them later.
func (p *Parser) ParsePlayer(args []string) (core.Player, error) {
	var raw playerJSON
	if err := p.decode(":PLAYER:UPDATE:", args, &raw); err != nil {
		return core.Player{}, err
	}

	id, err := parseUintFromFloat(raw.ID.String())
	if err != nil {
		return core.Player{}, fmt.Errorf("error converting player id: %w", err)
	}

	number := core.NumberUnset
	if raw.Number != nil {
		n, err := parseIntFromFloat(raw.Number.String())
		if err != nil {
			return core.Player{}, fmt.Errorf("error converting player number: %w", err)
		}
		number = int(n)
	}

	return core.Player{
		ID:       core.PlayerID(id),
		Username: raw.Username,
		Number:   number,
		Team:     parseTeamLenient(raw.Team),
		Role:     parseRole(raw.Role),
		Hand:     parseHand(raw.Hand),
		Position: raw.Position,
	}, nil
}

// ParsePlayerRemoved parses a :PLAYER:REMOVED: payload.
func (p *Parser) ParsePlayerRemoved(args []string) (core.PlayerID, error) {
	var raw idJSON
	if err := p.decode(":PLAYER:REMOVED:", args, &raw); err != nil {
		return 0, err
	}
	id, err := parseUintFromFloat(raw.ID.String())
	if err != nil {
		return 0, fmt.Errorf("error converting player id: %w", err)
	}
	return core.PlayerID(id), nil
}
