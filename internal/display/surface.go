package display

import (
	"maps"
	"sync"
)

// Surface is a rendering target addressed by element id
type Surface interface {
	SetText(id, text string)
	SetChecked(id string, checked bool)
	SetEnabled(id string, enabled bool)
	SetVisible(id string, visible bool)
}

// Flusher is implemented by surfaces that batch updates. Flush is called
// once after each handled event
type Flusher interface {
	Flush()
}

// SurfaceState is a copy of everything a MemorySurface has been told
type SurfaceState struct {
	Text    map[string]string
	Checked map[string]bool
	Enabled map[string]bool
	Visible map[string]bool
}

// MemorySurface keeps rendered values in memory
type MemorySurface struct {
	mu      sync.RWMutex
	state   SurfaceState
	calls   int
	flushes int
}

// NewMemorySurface creates an empty MemorySurface
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		state: SurfaceState{
			Text:    make(map[string]string),
			Checked: make(map[string]bool),
			Enabled: make(map[string]bool),
			Visible: make(map[string]bool),
		},
	}
}

// SetText sets the text of element id
func (m *MemorySurface) SetText(id, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Text[id] = text
	m.calls++
}

// SetChecked sets the checked state of indicator id
func (m *MemorySurface) SetChecked(id string, checked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Checked[id] = checked
	m.calls++
}

// SetEnabled enables or disables element id
func (m *MemorySurface) SetEnabled(id string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Enabled[id] = enabled
	m.calls++
}

// SetVisible shows or hides element id
func (m *MemorySurface) SetVisible(id string, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Visible[id] = visible
	m.calls++
}

// Flush counts one batch of updates
func (m *MemorySurface) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
}

// Text returns the text last set for id
func (m *MemorySurface) Text(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Text[id]
}

// Checked returns the checked flag last set for id
func (m *MemorySurface) Checked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Checked[id]
}

// Enabled reports the enabled flag last set for id and whether it was set
func (m *MemorySurface) Enabled(id string) (enabled, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enabled, ok = m.state.Enabled[id]
	return enabled, ok
}

// Visible reports the visible flag last set for id and whether it was set
func (m *MemorySurface) Visible(id string) (visible, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	visible, ok = m.state.Visible[id]
	return visible, ok
}

// Calls returns the number of setter calls received
func (m *MemorySurface) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Flushes returns the number of Flush calls received
func (m *MemorySurface) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// State returns a copy of the current surface state
func (m *MemorySurface) State() SurfaceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return SurfaceState{
		Text:    maps.Clone(m.state.Text),
		Checked: maps.Clone(m.state.Checked),
		Enabled: maps.Clone(m.state.Enabled),
		Visible: maps.Clone(m.state.Visible),
	}
}
