package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/internal/database"
	"github.com/puckstats/shotrecorder/internal/storage"
	"github.com/puckstats/shotrecorder/internal/storage/gormstore"
	"github.com/puckstats/shotrecorder/internal/storage/influxsink"
	"github.com/puckstats/shotrecorder/internal/storage/jsonfile"

	"github.com/rs/zerolog"
)

// createStorageBackend builds the session store: the JSON file backend is
// always primary, a SQL mirror and an InfluxDB sink are added by config.
func createStorageBackend(storageCfg config.StorageConfig, influxCfg config.InfluxConfig, logsDir string, start time.Time, log zerolog.Logger) (*storage.Multi, error) {
	primary := jsonfile.New(jsonfile.Config{
		OutputDir: storageCfg.JSON.OutputDir,
		Pretty:    storageCfg.JSON.Pretty,
	})
	log.Info().Str("dir", storageCfg.JSON.OutputDir).Msg("JSON session files enabled")

	var mirrors []storage.Backend

	switch storageCfg.Type {
	case "", "json":
	case "sqlite", "postgres":
		mgr := database.NewManager(log.With().Str("component", "database").Logger())
		if err := mgr.Connect(storageCfg); err != nil {
			return nil, fmt.Errorf("failed to connect session mirror: %w", err)
		}
		mirrors = append(mirrors, gormstore.New(mgr.DB, log.With().Str("component", "gormstore").Logger(), mgr.Close))
		log.Info().Str("type", storageCfg.Type).Bool("local", mgr.ShouldSaveLocal).Msg("Database mirror enabled")
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownType, storageCfg.Type)
	}

	if influxCfg.Enabled {
		backupPath := filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.log.gz", start.Format("20060102_150405")))
		mirrors = append(mirrors, influxsink.New(influxCfg, backupPath, log.With().Str("component", "influx").Logger()))
		log.Info().Str("url", influxCfg.URL()).Str("bucket", influxCfg.Bucket).Msg("InfluxDB shot points enabled")
	}

	return storage.NewMulti(primary, mirrors...), nil
}
