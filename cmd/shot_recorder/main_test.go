package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/puckstats/shotrecorder/internal/api"
	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/internal/dispatcher"
	"github.com/puckstats/shotrecorder/internal/logging"
	"github.com/puckstats/shotrecorder/internal/storage"
	"github.com/puckstats/shotrecorder/internal/storage/jsonfile"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// writeConfig points every output of the recorder into a temp dir.
func writeConfig(t *testing.T, storageType string, extra map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"serverName": "Rink 7",
		"logLevel":   "DEBUG",
		"logsDir":    filepath.Join(dir, "logs"),
		"storage": map[string]any{
			"type":   storageType,
			"json":   map[string]any{"outputDir": filepath.Join(dir, "shots"), "pretty": true},
			"sqlite": map[string]any{"path": filepath.Join(dir, "shots", "shots.db")},
		},
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0644))

	t.Setenv(ConfigDirEnv, dir)
	t.Cleanup(viper.Reset)
	return dir
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage:")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"frobnicate"}, nil, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"export", "only-one"}, nil, &stdout, &stderr))
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"VERSION"}, nil, &stdout, &stderr))
	assert.Equal(t, Version+" "+BuildDate+"\n", stdout.String())
}

func TestRun_ReplayMissingFeed(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"replay", filepath.Join(t.TempDir(), "nope.jsonl")}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "failed to open feed")
}

func TestRun_ReplayWritesSessionAndMirror(t *testing.T) {
	dir := writeConfig(t, "sqlite", nil)

	var console, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"replay", filepath.Join("testdata", "feed.jsonl")}, nil, &console, &stderr), stderr.String())
	assert.Contains(t, console.String(), "Replay finished")
	assert.FileExists(t, filepath.Join(dir, "logs", "status.json"))

	files, err := filepath.Glob(filepath.Join(dir, "shots", "Rink_7_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	sess, err := jsonfile.ReadFile(files[0])
	require.NoError(t, err)
	require.Len(t, sess.Shots, 2)
	require.NotNil(t, sess.Physics)
	assert.Equal(t, 0.17, sess.Physics.PuckMass)

	saved := sess.Shots[0]
	assert.Equal(t, core.ShotTypeOnGoal, saved.Type)
	assert.Equal(t, "BlueSkater", saved.Shooter.Name)
	assert.Equal(t, core.TeamRed, saved.TargetGoal)
	require.NotNil(t, saved.GoalieHitPosition)
	assert.Equal(t, core.Vec3{X: 0.2, Y: 0.3, Z: 38.9}, *saved.GoalieHitPosition)

	goal := sess.Shots[1]
	assert.Equal(t, core.ShotTypeGoal, goal.Type)
	assert.Equal(t, "RedCenter", goal.Shooter.Name)
	assert.Equal(t, core.TeamBlue, goal.TargetGoal)

	dbPath := filepath.Join(dir, "shots", "shots.db")
	var listing bytes.Buffer
	require.Equal(t, 0, run([]string{"sessions", dbPath}, nil, &listing, &stderr), stderr.String())
	fields := strings.Split(strings.TrimSpace(listing.String()), "\t")
	require.Len(t, fields, 4)
	assert.Equal(t, "Rink 7", fields[2])
	assert.Equal(t, "2", fields[3])

	var exported bytes.Buffer
	require.Equal(t, 0, run([]string{"export", dbPath, fields[0]}, nil, &exported, &stderr), stderr.String())
	fromDB, err := jsonfile.Unmarshal(exported.Bytes())
	require.NoError(t, err)
	require.Len(t, fromDB.Shots, 2)
	assert.Equal(t, sess.Shots[0].Type, fromDB.Shots[0].Type)
	assert.Equal(t, sess.Shots[1].Shooter.Name, fromDB.Shots[1].Shooter.Name)
	assert.InDelta(t, sess.Shots[1].ShotSpeed, fromDB.Shots[1].ShotSpeed, 1e-9)
}

func TestRun_ReplayUploadsSession(t *testing.T) {
	var summary api.SessionSummary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/sessions" {
			_ = r.ParseMultipartForm(1 << 20)
			_ = json.Unmarshal([]byte(r.FormValue("summary")), &summary)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	writeConfig(t, "json", map[string]any{
		"upload": map[string]any{"enabled": true, "url": srv.URL, "apiKey": "k"},
	})

	var console, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"replay", filepath.Join("testdata", "feed.jsonl")}, nil, &console, &stderr), stderr.String())
	assert.Equal(t, 2, summary.Shots)
	assert.Equal(t, "Rink 7", summary.Server)
	assert.Equal(t, 1, summary.ByType["Shot on Goal"])
	assert.Equal(t, 1, summary.ByTeam["Red"].Goals)
	assert.Contains(t, console.String(), "Session uploaded")
}

func TestRun_ExportErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"export", "shots.db", "not-a-uuid"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "invalid session id")

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "missing.db")
	assert.Equal(t, 1, run([]string{"export", missing, "6f1c1c1e-8d51-4c57-9a3e-2b1b0f5c3a10"}, nil, &stdout, &stderr))
	_, err := os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "export never creates a database")
}

func TestReplayFeed_CountsLines(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	var got [][]string
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		got = append(got, e.Args)
		return nil, nil
	})

	feed := strings.Join([]string{
		`{"command":":ECHO:","args":["a","b"]}`,
		``,
		`# comment`,
		`{"command":"\":ECHO:\"","payload":{"x":1}}`,
		`{"args":["no command"]}`,
		`{"command":":MISSING:"}`,
	}, "\n")

	stats, err := replayFeed(strings.NewReader(feed), d, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, replayStats{Lines: 6, Dispatched: 2, Failed: 1, Malformed: 1}, stats)
	assert.Equal(t, [][]string{{"a", "b"}, {`{"x":1}`}}, got)
}

func TestCreateStorageBackend(t *testing.T) {
	dir := t.TempDir()
	base := config.StorageConfig{JSON: config.JSONConfig{OutputDir: filepath.Join(dir, "shots")}}

	t.Run("json only", func(t *testing.T) {
		cfg := base
		cfg.Type = "json"
		b, err := createStorageBackend(cfg, config.InfluxConfig{}, dir, testTime, zerolog.Nop())
		require.NoError(t, err)
		assert.NoError(t, b.Init())
		assert.NoError(t, b.Close())
	})

	t.Run("sqlite mirror", func(t *testing.T) {
		cfg := base
		cfg.Type = "sqlite"
		cfg.SQLite.Path = filepath.Join(dir, "mirror.db")
		b, err := createStorageBackend(cfg, config.InfluxConfig{}, dir, testTime, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, b.Init())
		assert.NoError(t, b.Close())
		assert.FileExists(t, cfg.SQLite.Path)
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := base
		cfg.Type = "cassandra"
		_, err := createStorageBackend(cfg, config.InfluxConfig{}, dir, testTime, zerolog.Nop())
		assert.ErrorIs(t, err, storage.ErrUnknownType)
	})
}
