package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// BadKey is the field name given to a trailing value without a key.
const BadKey = "!BADKEY"

// DispatcherLogger adapts zerolog.Logger to the dispatcher.Logger interface.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger wraps logger.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.log(zerolog.DebugLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.log(zerolog.InfoLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) log(level zerolog.Level, msg string, keysAndValues []any) {
	e := l.logger.WithLevel(level)
	if !e.Enabled() {
		return
	}
	e.Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields turns alternating keys and values into zerolog fields. Keys that
// are not strings are formatted, a trailing value is kept under BadKey.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields[BadKey] = keysAndValues[i]
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
