// Package display renders connection events onto a Surface through a fixed
// field catalog and forwards user requests back to the connection
package display

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/connection"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/metrics"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

// ErrUnknownEvent is returned for events outside the known set
var ErrUnknownEvent = errors.New("unknown event")

// Commander accepts commands for the UPS status server
type Commander interface {
	Send(cmd connection.Command)
}

// Observer is called with every rendered snapshot
type Observer func(s telemetry.Snapshot)

// Binder paints events onto a Surface
type Binder struct {
	surface   Surface
	commands  Commander
	observers []Observer
	logger    zerolog.Logger
}

// NewBinder creates a Binder
func NewBinder(surface Surface, commands Commander, logger zerolog.Logger, observers ...Observer) *Binder {
	return &Binder{
		surface:   surface,
		commands:  commands,
		observers: observers,
		logger:    logger.With().Str("component", "display").Logger(),
	}
}

// Start shows the connection spinner, enables the measurement button and
// asks the connection to come up
func (b *Binder) Start() {
	b.surface.SetVisible(ConnectionSpinner, true)
	b.surface.SetEnabled(ButtonCapEsr, true)
	b.flush()
	b.commands.Send(connection.CommandConnect)
}

// Run dispatches events until ctx is cancelled or events is closed.
// Unknown events are logged and skipped
func (b *Binder) Run(ctx context.Context, events <-chan connection.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.Dispatch(ev); err != nil {
				b.logger.Error().Err(err).Msg("Dropping event")
			}
		}
	}
}

// Dispatch handles a single event
func (b *Binder) Dispatch(ev connection.Event) error {
	switch ev.Type {
	case connection.EventConnected:
		b.OnConnected()
	case connection.EventDisconnected:
		b.OnDisconnected()
	case connection.EventData:
		b.OnData(ev.Snapshot)
	default:
		metrics.EventsTotal.WithLabelValues("unknown").Inc()
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// OnConnected hides the connection spinner
func (b *Binder) OnConnected() {
	b.logger.Info().Msg("Connected")
	b.surface.SetVisible(ConnectionSpinner, false)
	b.flush()
}

// OnDisconnected shows the connection spinner
func (b *Binder) OnDisconnected() {
	b.logger.Info().Msg("Disconnected")
	b.surface.SetVisible(ConnectionSpinner, true)
	b.flush()
}

// OnData renders every field and indicator of s. Rendering the same
// snapshot twice leaves the surface unchanged
func (b *Binder) OnData(s telemetry.Snapshot) {
	for _, f := range Fields {
		b.surface.SetText(f.ID, f.Format(s))
	}
	for _, ind := range Indicators {
		b.surface.SetChecked(ind.ID, ind.Set(s))
	}
	b.surface.SetEnabled(ButtonCapEsr, !s.MeasurementRunning())
	b.flush()

	for _, observe := range b.observers {
		observe(s)
	}
}

// OnUserRequestMeasurement asks the UPS to start a capacitance/ESR
// measurement. The server decides whether it applies
func (b *Binder) OnUserRequestMeasurement() {
	b.logger.Info().Msg("Cap/ESR measurement requested")
	b.commands.Send(connection.CommandStartCapEsrMeasurement)
}

func (b *Binder) flush() {
	if f, ok := b.surface.(Flusher); ok {
		f.Flush()
	}
}
