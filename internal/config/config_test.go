package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/puckstats/shotrecorder/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"serverName": "Friday Pickup",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "Friday Pickup", viper.GetString("serverName"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./shotlogs", viper.GetString("logsDir"))
	assert.Equal(t, "puck-server", viper.GetString("serverName"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "json", viper.GetString("storage.type"))
	assert.Equal(t, "./shots", viper.GetString("storage.json.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.json.pretty"))
	assert.Equal(t, "./shots/shots.db", viper.GetString("storage.sqlite.path"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "shots", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "shot-recorder", viper.GetString("otel.serviceName"))
	assert.Equal(t, 32, viper.GetInt("contacts.historySize"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults are still in place
	assert.Equal(t, "puck-server", GetServerConfig().Name)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetServerConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"serverName": "EU #2",
		"logLevel": "warn",
		"graylog": { "enabled": true, "address": "graylog:12201" },
		"status": { "interval": "2s" }
	}`)))

	cfg := GetServerConfig()
	assert.Equal(t, "EU #2", cfg.Name)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "./shotlogs", cfg.LogsDir)
	assert.True(t, cfg.GraylogEnabled)
	assert.Equal(t, "graylog:12201", cfg.GraylogAddress)
	assert.Equal(t, 2*time.Second, cfg.StatusInterval)
}

func TestGetGeometryConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetGeometryConfig()
	assert.Equal(t, core.Vec3{X: 0, Y: 0.8, Z: -40.5}, cfg.BlueGoal)
	assert.Equal(t, core.Vec3{X: 0, Y: 0.8, Z: 40.5}, cfg.RedGoal)
	assert.Equal(t, 0.1, cfg.MinSpeed)
	assert.Equal(t, 0.5, cfg.ConeDot)
	assert.Equal(t, 3.5, cfg.ZoneRadius)
	assert.Equal(t, 15*time.Second, cfg.GoalCooldown)
	assert.Equal(t, 32, cfg.ContactHistorySize)
}

func TestGetGeometryConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"goals": { "blue": [1, 0.5, -30], "red": [1, 0.5, 30] },
		"classifier": { "coneDot": 0.7 },
		"zone": { "radius": 4 },
		"goal": { "cooldown": "20s" }
	}`)))

	cfg := GetGeometryConfig()
	assert.Equal(t, core.Vec3{X: 1, Y: 0.5, Z: -30}, cfg.BlueGoal)
	assert.Equal(t, core.Vec3{X: 1, Y: 0.5, Z: 30}, cfg.RedGoal)
	assert.Equal(t, 0.7, cfg.ConeDot)
	assert.Equal(t, 4.0, cfg.ZoneRadius)
	assert.Equal(t, 20*time.Second, cfg.GoalCooldown)
}

func TestGetGeometryConfig_MalformedGoalFallsBack(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{ "goals": { "blue": [1, 2] } }`)))

	assert.Equal(t, core.Vec3{X: 0, Y: 0.8, Z: -40.5}, GetGeometryConfig().BlueGoal)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "json", cfg.Type)
	assert.Equal(t, "./shots", cfg.JSON.OutputDir)
	assert.Equal(t, true, cfg.JSON.Pretty)
	assert.Equal(t, "./shots/shots.db", cfg.SQLite.Path)
	assert.Equal(t, "postgres", cfg.Postgres.Username)
	assert.Equal(t, "shots", cfg.Postgres.Database)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"json": { "outputDir": "/tmp/out", "pretty": false },
			"sqlite": { "path": "/tmp/out/shots.db" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.JSON.OutputDir)
	assert.Equal(t, false, sc.JSON.Pretty)
	assert.Equal(t, "/tmp/out/shots.db", sc.SQLite.Path)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "host": "influx.local", "protocol": "https" }
	}`)))

	cfg := GetInfluxConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://influx.local:8086", cfg.URL())
	assert.Equal(t, "puck-stats", cfg.Org)
	assert.Equal(t, "shots", cfg.Bucket)
}

func TestGetUploadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"upload": { "enabled": true, "apiKey": "k3y" }
	}`)))

	cfg := GetUploadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http://localhost:5000", cfg.URL)
	assert.Equal(t, "k3y", cfg.APIKey)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "shot-recorder", cfg.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.ExportInterval)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": { "enabled": true, "serviceName": "rink-metrics", "exportInterval": "5s" }
	}`)))

	cfg := GetOTelConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "rink-metrics", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.ExportInterval)
}
