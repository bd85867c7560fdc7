package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel converts a config log level to a zerolog level. Unknown values map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options configures Manager.Setup.
type Options struct {
	Level string
	// Console receives colored console output; nil disables it.
	Console io.Writer
	// File receives plain console output.
	File io.Writer
	// GraylogAddress enables the GELF UDP writer when set.
	GraylogAddress string
	// Context stamps every line with runtime fields.
	Context ContextProvider
}

// Manager owns the process logger and its outputs.
type Manager struct {
	logger  zerolog.Logger
	graylog *gelf.Writer
	ready   bool
}

// NewManager creates a manager whose logger discards everything until Setup.
func NewManager() *Manager {
	return &Manager{logger: zerolog.Nop()}
}

// Setup builds the logger. A GELF writer that cannot be created is reported
// and skipped; the other outputs stay active.
func (m *Manager) Setup(opts Options) error {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.RFC3339,
		})
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	var gelfErr error
	if opts.GraylogAddress != "" {
		w, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			gelfErr = fmt.Errorf("failed to create graylog writer: %w", err)
		} else {
			m.graylog = w
			writers = append(writers, w)
		}
	}

	level := ParseLevel(opts.Level)
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	if opts.Context != nil {
		logger = logger.Hook(NewContextHook(opts.Context))
	}

	m.logger = logger
	m.ready = true
	m.logger.Info().Str("loglevel", level.String()).Bool("graylog", m.graylog != nil).Msg("Logging set up")
	if gelfErr != nil {
		m.logger.Warn().Err(gelfErr).Str("address", opts.GraylogAddress).Msg("Graylog output disabled")
	}
	return gelfErr
}

// Logger returns the configured logger, or a no-op logger before Setup.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Component returns a child logger tagged with the component name.
func (m *Manager) Component(name string) zerolog.Logger {
	return m.logger.With().Str("component", name).Logger()
}

// Close releases the GELF connection.
func (m *Manager) Close() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}

// RemoveOldLogs deletes .log files in dir older than maxAge and returns how many were removed.
func RemoveOldLogs(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read logs dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
