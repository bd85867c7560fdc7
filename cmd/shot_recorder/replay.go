package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/puckstats/shotrecorder/internal/dispatcher"
	"github.com/puckstats/shotrecorder/internal/util"

	"github.com/rs/zerolog"
)

// feedLine is one host command in a JSON-lines feed. The payload may be
// given pre-encoded in args, as the host sends it, or inline as JSON.
type feedLine struct {
	Command string          `json:"command"`
	Args    []string        `json:"args"`
	Payload json.RawMessage `json:"payload"`
}

type replayStats struct {
	Lines      int
	Dispatched int
	Failed     int
	Malformed  int
}

const maxFeedLine = 4 * 1024 * 1024

// replayFeed dispatches every command of the feed in order. Bad lines and
// failing commands are logged and counted; only a read error stops the replay.
func replayFeed(r io.Reader, d *dispatcher.Dispatcher, log zerolog.Logger) (replayStats, error) {
	var stats replayStats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFeedLine)

	for sc.Scan() {
		stats.Lines++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var fl feedLine
		err := json.Unmarshal([]byte(text), &fl)
		// recorded host logs keep the command in its quoted form
		fl.Command = util.TrimQuotes(fl.Command)
		if err != nil || fl.Command == "" {
			stats.Malformed++
			log.Warn().Int("line", stats.Lines).AnErr("error", err).Msg("Skipping malformed feed line")
			continue
		}

		args := fl.Args
		if len(args) == 0 && len(fl.Payload) > 0 {
			args = []string{string(fl.Payload)}
		}

		if _, err := d.Dispatch(dispatcher.Event{Command: fl.Command, Args: args, Timestamp: time.Now()}); err != nil {
			stats.Failed++
			log.Warn().Int("line", stats.Lines).Str("command", fl.Command).Err(err).Msg("Feed command failed")
			continue
		}
		stats.Dispatched++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("error reading feed: %w", err)
	}
	return stats, nil
}
