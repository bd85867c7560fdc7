// Package parser converts host command arguments into pkg/core events.
//
// Every command carries its payload as a single JSON document in Args[0],
// possibly wrapped in host-side quotes. Parsing is pure: no caches, no storage.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/puckstats/shotrecorder/internal/util"
	"github.com/rs/zerolog"
)

// ErrEmptyArgs is returned when a command arrives without a payload.
var ErrEmptyArgs = errors.New("no payload in command args")

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Host scripting layers often have no integer type, so ids may arrive as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> core event conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "parser").Logger()}
}

// decode unquotes args[0] and unmarshals it into v.
func (p *Parser) decode(command string, args []string, v any) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%s: %w", command, ErrEmptyArgs)
	}
	raw := util.Unquote(args[0])

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		p.logger.Trace().Str("command", command).Str("payload", raw).Msg("Undecodable payload")
		return fmt.Errorf("error unmarshalling %s payload: %w", command, err)
	}
	return nil
}
