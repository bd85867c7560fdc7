package config

import (
	"fmt"
	"time"

	"github.com/puckstats/shotrecorder/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the name of the configuration file looked up in the config directory.
const FileName = "shot_recorder.cfg.json"

// ServerConfig holds process-wide settings
type ServerConfig struct {
	Name           string        `json:"serverName" mapstructure:"serverName"`
	LogLevel       string        `json:"logLevel" mapstructure:"logLevel"`
	LogsDir        string        `json:"logsDir" mapstructure:"logsDir"`
	GraylogEnabled bool          `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string        `json:"graylogAddress" mapstructure:"graylogAddress"`
	StatusInterval time.Duration `json:"statusInterval" mapstructure:"statusInterval"`
}

// GeometryConfig holds rink geometry and detection thresholds
type GeometryConfig struct {
	BlueGoal           core.Vec3
	RedGoal            core.Vec3
	MinSpeed           float64
	ConeDot            float64
	ZoneRadius         float64
	GoalCooldown       time.Duration
	ContactHistorySize int
}

// JSONConfig holds session file output settings
type JSONConfig struct {
	OutputDir string `json:"outputDir" mapstructure:"outputDir"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// SQLiteConfig holds SQLite mirror settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL mirror settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	JSON     JSONConfig     `json:"json" mapstructure:"json"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"db" mapstructure:"db"`
}

// InfluxConfig holds InfluxDB shot point settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server URL of the InfluxDB instance.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// UploadConfig holds the statistics server that receives finished sessions.
type UploadConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	APIKey  string `json:"apiKey" mapstructure:"apiKey"`
}

// OTelConfig holds OpenTelemetry metrics settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
}

var (
	defaultBlueGoal = []float64{0, 0.8, -40.5}
	defaultRedGoal  = []float64{0, 0.8, 40.5}
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults remain
// usable when the file is missing.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./shotlogs")
	viper.SetDefault("serverName", "puck-server")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
	viper.SetDefault("status.interval", "5s")

	viper.SetDefault("goals.blue", defaultBlueGoal)
	viper.SetDefault("goals.red", defaultRedGoal)
	viper.SetDefault("classifier.minSpeed", 0.1)
	viper.SetDefault("classifier.coneDot", 0.5)
	viper.SetDefault("zone.radius", 3.5)
	viper.SetDefault("goal.cooldown", "15s")
	viper.SetDefault("contacts.historySize", 32)

	viper.SetDefault("storage.type", "json")
	viper.SetDefault("storage.json.outputDir", "./shots")
	viper.SetDefault("storage.json.pretty", true)
	viper.SetDefault("storage.sqlite.path", "./shots/shots.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "shots")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "puck-stats")
	viper.SetDefault("influx.bucket", "shots")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.url", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "shot-recorder")
	viper.SetDefault("otel.exportInterval", "30s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the process settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Name:           viper.GetString("serverName"),
		LogLevel:       viper.GetString("logLevel"),
		LogsDir:        viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
		StatusInterval: viper.GetDuration("status.interval"),
	}
}

// GetGeometryConfig returns goal positions and detection thresholds.
func GetGeometryConfig() GeometryConfig {
	return GeometryConfig{
		BlueGoal:           getVec3("goals.blue", defaultBlueGoal),
		RedGoal:            getVec3("goals.red", defaultRedGoal),
		MinSpeed:           viper.GetFloat64("classifier.minSpeed"),
		ConeDot:            viper.GetFloat64("classifier.coneDot"),
		ZoneRadius:         viper.GetFloat64("zone.radius"),
		GoalCooldown:       viper.GetDuration("goal.cooldown"),
		ContactHistorySize: viper.GetInt("contacts.historySize"),
	}
}

// GetStorageConfig returns the storage configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		JSON: JSONConfig{
			OutputDir: viper.GetString("storage.json.outputDir"),
			Pretty:    viper.GetBool("storage.json.pretty"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetUploadConfig returns the session upload configuration.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled: viper.GetBool("upload.enabled"),
		URL:     viper.GetString("upload.url"),
		APIKey:  viper.GetString("upload.apiKey"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
	}
}

// getVec3 reads a three element array; anything else falls back to def.
func getVec3(key string, def []float64) core.Vec3 {
	var xyz []float64
	if err := viper.UnmarshalKey(key, &xyz); err != nil || len(xyz) != 3 {
		xyz = def
	}
	return core.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
}
