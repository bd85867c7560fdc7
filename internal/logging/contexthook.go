package logging

import "github.com/rs/zerolog"

// ContextProvider returns dynamic fields added to every log line.
type ContextProvider func() map[string]any

// ContextHook is a zerolog.Hook that stamps each event with the provider's fields.
type ContextHook struct {
	provider ContextProvider
}

// NewContextHook creates a hook around provider.
func NewContextHook(provider ContextProvider) ContextHook {
	return ContextHook{provider: provider}
}

// Run implements zerolog.Hook.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h.provider == nil || level == zerolog.NoLevel {
		return
	}
	if fields := h.provider(); len(fields) > 0 {
		e.Fields(fields)
	}
}
