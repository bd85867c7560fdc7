// Command shot_recorder replays a host event feed through the shot
// classifier and inspects the sessions mirrored into SQLite.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "shot_recorder"
)

// ConfigDirEnv names the environment variable holding the config directory.
const ConfigDirEnv = "SHOT_RECORDER_CONFIG_DIR"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `usage:
  %[1]s replay <feed.jsonl|->            replay a host event feed
  %[1]s export <sqlite-path> <session-id> print a session document from the database
  %[1]s sessions <sqlite-path>            list sessions in the database
  %[1]s version
`, AppName)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch strings.ToLower(args[0]) {
	case "replay":
		if len(args) != 2 {
			usage(stderr)
			return 2
		}
		if err := runReplay(args[1], stdin, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	case "export":
		if len(args) != 3 {
			usage(stderr)
			return 2
		}
		if err := exportSession(args[1], args[2], stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	case "sessions":
		if len(args) != 2 {
			usage(stderr)
			return 2
		}
		if err := listSessions(args[1], stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	case "version":
		fmt.Fprintln(stdout, Version, BuildDate)
	default:
		usage(stderr)
		return 2
	}
	return 0
}

func runReplay(feedPath string, stdin io.Reader, console io.Writer) error {
	var feed io.Reader = stdin
	if feedPath != "-" {
		f, err := os.Open(feedPath)
		if err != nil {
			return fmt.Errorf("failed to open feed: %w", err)
		}
		defer f.Close()
		feed = f
	}

	configDir := os.Getenv(ConfigDirEnv)
	if configDir == "" {
		configDir = "."
	}

	a, err := newApp(configDir, console)
	if err != nil {
		return err
	}

	stats, replayErr := replayFeed(feed, a.disp, a.log)
	a.log.Info().
		Int("lines", stats.Lines).
		Int("dispatched", stats.Dispatched).
		Int("failed", stats.Failed).
		Int("malformed", stats.Malformed).
		Msg("Replay finished")

	if err := a.close(); err != nil {
		return err
	}
	return replayErr
}
