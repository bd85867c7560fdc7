package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/puckstats/shotrecorder/internal/api"
	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/internal/dispatcher"
	"github.com/puckstats/shotrecorder/internal/handlers"
	"github.com/puckstats/shotrecorder/internal/logging"
	"github.com/puckstats/shotrecorder/internal/monitor"
	intOtel "github.com/puckstats/shotrecorder/internal/otel"
	"github.com/puckstats/shotrecorder/internal/parser"
	"github.com/puckstats/shotrecorder/internal/session"
	"github.com/puckstats/shotrecorder/internal/storage"

	"github.com/rs/zerolog"
)

// logRetention is how long old log files are kept in the logs directory.
const logRetention = 30 * 24 * time.Hour

// app is the wired recorder: logging, metrics, storage, session and the host command routes.
type app struct {
	start time.Time

	logs    *logging.Manager
	logFile *os.File
	log     zerolog.Logger

	otel     *intOtel.Provider
	backend  *storage.Multi
	recorder *session.Recorder
	disp     *dispatcher.Dispatcher
	service  *handlers.Service
	monitor  *monitor.Service
	uploader *api.Client
}

// newApp loads configuration from configDir and wires every component.
// Console output goes to console; nil disables it.
func newApp(configDir string, console io.Writer) (*app, error) {
	a := &app{start: time.Now().UTC(), logs: logging.NewManager()}

	configErr := config.Load(configDir)
	srv := config.GetServerConfig()

	if err := os.MkdirAll(srv.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(srv.LogsDir, AppName, a.start)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = logFile

	graylog := ""
	if srv.GraylogEnabled {
		graylog = srv.GraylogAddress
	}
	// a graylog failure is already logged by Setup and is not fatal
	_ = a.logs.Setup(logging.Options{
		Level:          srv.LogLevel,
		Console:        console,
		File:           logFile,
		GraylogAddress: graylog,
		Context:        a.sessionFields,
	})
	a.log = a.logs.Logger()
	a.log.Info().Str("version", Version).Str("build", BuildDate).Str("path", logPath).Msg("Logging to file")

	if configErr != nil {
		a.log.Warn().Err(configErr).Msg("Failed to load config, using defaults!")
	} else {
		a.log.Info().Str("dir", configDir).Msg("Loaded config")
	}

	if n, err := logging.RemoveOldLogs(srv.LogsDir, logRetention, a.start); err != nil {
		a.log.Warn().Err(err).Msg("Failed to prune old logs")
	} else if n > 0 {
		a.log.Info().Int("removed", n).Msg("Pruned old logs")
	}

	otelCfg := config.GetOTelConfig()
	a.otel, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ExportInterval: otelCfg.ExportInterval,
		MetricWriter:   logFile,
	})
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to initialize OTel provider, metrics disabled")
		a.otel, _ = intOtel.New(intOtel.Config{})
	} else if a.otel.Enabled() {
		a.log.Info().Dur("interval", otelCfg.ExportInterval).Msg("OTel metrics enabled")
	}

	a.backend, err = createStorageBackend(config.GetStorageConfig(), config.GetInfluxConfig(), srv.LogsDir, a.start, a.log)
	if err != nil {
		a.closeLogs()
		return nil, err
	}
	if err := a.backend.Init(); err != nil {
		a.closeLogs()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if up := config.GetUploadConfig(); up.Enabled {
		a.uploader = api.New(up.URL, up.APIKey)
		if err := a.uploader.Healthcheck(); err != nil {
			a.log.Warn().Err(err).Str("url", up.URL).Msg("Statistics server not reachable, will still try to upload")
		}
	}

	a.recorder = session.NewRecorder(srv.Name, a.backend,
		session.WithLogger(a.logs.Component("session")))

	a.disp, err = dispatcher.New(logging.NewDispatcherLogger(a.logs.Component("dispatcher")))
	if err != nil {
		_ = a.backend.Close()
		a.closeLogs()
		return nil, err
	}

	a.service, err = handlers.NewService(handlers.Dependencies{
		Geometry: config.GetGeometryConfig(),
		Recorder: a.recorder,
		Parser:   parser.NewParser(a.log),
		Meter:    a.otel.Meter("github.com/puckstats/shotrecorder/internal/handlers"),
		Logger:   a.log,
	})
	if err != nil {
		_ = a.backend.Close()
		a.closeLogs()
		return nil, err
	}
	a.service.Start(a.disp)
	a.log.Info().Strs("commands", a.disp.Commands()).Msg("Host commands registered")

	a.monitor = monitor.NewService(monitor.Dependencies{
		Session:    a.recorder,
		Pucks:      a.service,
		StatusPath: filepath.Join(srv.LogsDir, "status.json"),
		Interval:   srv.StatusInterval,
		Logger:     a.logs.Component("monitor"),
	})
	if err := a.monitor.Start(); err != nil {
		a.log.Warn().Err(err).Msg("Status monitor not started")
	}

	return a, nil
}

// sessionFields stamps every log line with the current session.
func (a *app) sessionFields() map[string]any {
	if a.recorder == nil {
		return nil
	}
	info, ok := a.recorder.Info()
	if !ok {
		return nil
	}
	return map[string]any{
		"server":  info.Server,
		"session": info.ID,
		"shots":   info.Shots,
	}
}

// close flushes the session and shuts everything down in reverse order.
func (a *app) close() error {
	var errs []error

	if err := a.service.Stop(a.disp); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush session: %w", err))
	}
	a.disp.Close()
	a.monitor.Stop()
	if err := a.upload(); err != nil {
		a.log.Error().Err(err).Msg("Failed to upload session")
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otel.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	a.log.Info().Msg("Shut down")
	a.closeLogs()
	return errors.Join(errs...)
}

// upload sends the current session file to the statistics server, if one is configured.
func (a *app) upload() error {
	if a.uploader == nil {
		return nil
	}
	sess, ok := a.recorder.Current()
	if !ok || len(sess.Shots) == 0 {
		return nil
	}
	path := a.backend.Path(&sess)
	if path == "" {
		return fmt.Errorf("no session file to upload")
	}
	if err := a.uploader.Upload(path, api.Summarize(&sess)); err != nil {
		return err
	}
	a.log.Info().Str("path", path).Int("shots", len(sess.Shots)).Msg("Session uploaded")
	return nil
}

func (a *app) closeLogs() {
	_ = a.logs.Close()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
