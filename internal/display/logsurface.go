package display

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogSurface writes value changes to a logger instead of a screen
type LogSurface struct {
	mu     sync.Mutex
	logger zerolog.Logger
	last   map[string]any
}

// NewLogSurface creates a LogSurface
func NewLogSurface(logger zerolog.Logger) *LogSurface {
	return &LogSurface{
		logger: logger.With().Str("component", "surface").Logger(),
		last:   make(map[string]any),
	}
}

// SetText logs the text of element id when it changes
func (l *LogSurface) SetText(id, text string) {
	if l.changed("text:"+id, text) {
		l.logger.Info().Str("id", id).Str("value", text).Msg("Field updated")
	}
}

// SetChecked sets the checked state of indicator id
func (l *LogSurface) SetChecked(id string, checked bool) {
	if l.changed("checked:"+id, checked) {
		l.logger.Info().Str("id", id).Bool("checked", checked).Msg("Indicator updated")
	}
}

// SetEnabled enables or disables element id
func (l *LogSurface) SetEnabled(id string, enabled bool) {
	if l.changed("enabled:"+id, enabled) {
		l.logger.Info().Str("id", id).Bool("enabled", enabled).Msg("Control updated")
	}
}

// SetVisible shows or hides element id
func (l *LogSurface) SetVisible(id string, visible bool) {
	if l.changed("visible:"+id, visible) {
		l.logger.Debug().Str("id", id).Bool("visible", visible).Msg("Visibility updated")
	}
}

func (l *LogSurface) changed(key string, v any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[key]; ok && prev == v {
		return false
	}
	l.last[key] = v
	return true
}
