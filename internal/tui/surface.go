// Package tui renders the dashboard in a terminal
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/display"
)

const (
	buttonLabel        = "Start Cap/ESR measurement (m)"
	buttonLabelRunning = "Measurement running"
	buttonLabelOffline = "Waiting for UPS"
)

type row struct {
	table *tview.Table
	index int
}

// Surface is a display surface drawn with tview
type Surface struct {
	// OnMeasure is called when the user asks for a cap/ESR measurement
	OnMeasure func()

	app        *tview.Application
	status     *tview.TextView
	fields     *tview.Table
	indicators *tview.Table
	button     *tview.Button

	rows   map[string]row
	logger zerolog.Logger

	// Desired state, copied into the widgets on the UI goroutine
	mu            sync.Mutex
	text          map[string]string
	checked       map[string]bool
	buttonEnabled bool
	connecting    bool

	dirty chan struct{}
}

// NewSurface builds the terminal layout from the field catalog
func NewSurface(logger zerolog.Logger) *Surface {
	s := &Surface{
		app:        tview.NewApplication(),
		status:     tview.NewTextView(),
		fields:     tview.NewTable(),
		indicators: tview.NewTable(),
		button:     tview.NewButton(buttonLabel),
		rows:       make(map[string]row),
		logger:     logger.With().Str("component", "tui").Logger(),
		text:       make(map[string]string),
		checked:    make(map[string]bool),
		connecting: true,
		dirty:      make(chan struct{}, 1),
	}

	s.status.SetDynamicColors(true)
	s.status.SetTextAlign(tview.AlignRight)

	s.fields.SetBorder(true)
	s.fields.SetTitle(" Telemetry ")
	group := ""
	for _, f := range display.Fields {
		n := s.fields.GetRowCount()
		if f.Group != group {
			group = f.Group
			s.fields.SetCell(n, 0, tview.NewTableCell(group).SetTextColor(tcell.ColorSteelBlue).SetSelectable(false))
			n++
		}
		s.fields.SetCell(n, 0, tview.NewTableCell("  "+f.Label).SetTextColor(tcell.ColorGray))
		s.fields.SetCell(n, 1, tview.NewTableCell("-").SetAlign(tview.AlignRight).SetExpansion(1))
		s.fields.SetCell(n, 2, tview.NewTableCell(f.Unit).SetTextColor(tcell.ColorGray))
		s.rows[f.ID] = row{s.fields, n}
	}

	s.indicators.SetBorder(true)
	s.indicators.SetTitle(" Status ")
	register := ""
	for _, ind := range display.Indicators {
		n := s.indicators.GetRowCount()
		if ind.Register != register {
			register = ind.Register
			s.indicators.SetCell(n, 0, tview.NewTableCell(register).SetTextColor(tcell.ColorSteelBlue))
			n++
		}
		s.indicators.SetCell(n, 0, tview.NewTableCell(checkbox(false)+" "+ind.Label))
		s.rows[ind.ID] = row{s.indicators, n}
	}

	s.button.SetSelectedFunc(s.press)

	header := tview.NewFlex().
		AddItem(tview.NewTextView().SetText(" UPS Dashboard"), 0, 1, false).
		AddItem(s.status, 0, 1, false)

	body := tview.NewFlex().
		AddItem(s.fields, 0, 1, false).
		AddItem(s.indicators, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(body, 0, 1, false).
		AddItem(s.button, 1, 0, true)

	s.app.SetRoot(root, true).SetFocus(s.button)
	s.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			s.app.Stop()
			return nil
		case 'm':
			s.press()
			return nil
		}
		return event
	})

	s.sync()
	return s
}

// SetText sets the text of element id
func (s *Surface) SetText(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text[id] = text
}

// SetChecked sets the checked state of indicator id
func (s *Surface) SetChecked(id string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked[id] = checked
}

// SetEnabled enables or disables the measurement button; other ids are ignored
func (s *Surface) SetEnabled(id string, enabled bool) {
	if id != display.ButtonCapEsr {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttonEnabled = enabled
}

// SetVisible toggles the connecting status; other ids are ignored
func (s *Surface) SetVisible(id string, visible bool) {
	if id != display.ConnectionSpinner {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connecting = visible
}

// Flush schedules a redraw. Redraws are coalesced and never block
func (s *Surface) Flush() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run draws the terminal until ctx is cancelled or the user quits
func (s *Surface) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-ctx.Done():
				s.app.Stop()
				return
			case <-done:
				return
			case <-s.dirty:
				s.app.QueueUpdateDraw(s.sync)
			}
		}
	}()

	if err := s.app.Run(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	return nil
}

// sync copies the desired state into the widgets. It runs on the UI goroutine
func (s *Surface) sync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, text := range s.text {
		if r, ok := s.rows[id]; ok && r.table == s.fields {
			r.table.GetCell(r.index, 1).SetText(text)
		}
	}
	for _, ind := range display.Indicators {
		r := s.rows[ind.ID]
		cell := r.table.GetCell(r.index, 0)
		on := s.checked[ind.ID]
		cell.SetText(checkbox(on) + " " + ind.Label)
		if on {
			cell.SetTextColor(tcell.ColorGreen)
		} else {
			cell.SetTextColor(tcell.ColorWhite)
		}
	}

	if s.connecting {
		s.status.SetText("[yellow]connecting...[-] ")
	} else {
		s.status.SetText("[green]connected[-] ")
	}

	switch {
	case s.connecting:
		s.button.SetLabel(buttonLabelOffline)
	case s.buttonEnabled:
		s.button.SetLabel(buttonLabel)
	default:
		s.button.SetLabel(buttonLabelRunning)
	}
}

// press forwards a measurement request unless the button is disabled
func (s *Surface) press() {
	s.mu.Lock()
	enabled := s.buttonEnabled && !s.connecting
	s.mu.Unlock()

	if !enabled {
		s.logger.Debug().Msg("Measurement button disabled, ignoring")
		return
	}
	if s.OnMeasure != nil {
		s.OnMeasure()
	}
}

func checkbox(on bool) string {
	if on {
		return tview.Escape("[x]")
	}
	return tview.Escape("[ ]")
}
