// Package notify sends push notifications when the UPS switches between
// mains and backup power
package notify

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/gregdel/pushover"
	"github.com/rs/zerolog"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/display"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/metrics"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

// Sender delivers one notification
type Sender interface {
	Send(title, message string) error
}

// Pushover sends notifications to a single Pushover recipient
type Pushover struct {
	push      *pushover.Pushover
	recipient *pushover.Recipient
}

// NewPushover creates a Pushover sender
func NewPushover(token, user string) *Pushover {
	return &Pushover{
		push:      pushover.New(token),
		recipient: pushover.NewRecipient(user),
	}
}

// Send delivers one titled message to the recipient
func (p *Pushover) Send(title, message string) error {
	_, err := p.push.SendMessage(pushover.NewMessageWithTitle(message, title), p.recipient)
	return err
}

// PowerWatcher notifies on input power transitions. The first snapshot
// only records the starting state
type PowerWatcher struct {
	sender Sender
	logger zerolog.Logger

	// Async runs a send; replaced in tests
	Async func(func())

	mu      sync.Mutex
	known   bool
	onMains bool
}

// NewPowerWatcher creates a PowerWatcher
func NewPowerWatcher(sender Sender, logger zerolog.Logger) *PowerWatcher {
	return &PowerWatcher{
		sender: sender,
		logger: logger.With().Str("component", "notify").Logger(),
		Async:  func(f func()) { go f() },
	}
}

// Observe checks a snapshot for a power transition
func (w *PowerWatcher) Observe(s telemetry.Snapshot) {
	onMains := OnMains(s)

	w.mu.Lock()
	changed := w.known && w.onMains != onMains
	w.known, w.onMains = true, onMains
	w.mu.Unlock()

	if !changed {
		return
	}

	title, message := "UPS input power restored", "Running on mains again."
	if !onMains {
		title = "UPS input power lost"
		message = fmt.Sprintf("Running on backup. SOC %s%%, remaining %s.",
			strconv.FormatFloat(s.SOC, 'f', -1, 64), display.FormatRemaining(s.RemainTime))
	}

	w.Async(func() {
		if err := w.sender.Send(title, message); err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			w.logger.Error().Err(err).Str("title", title).Msg("Cannot send notification")
			return
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		w.logger.Info().Str("title", title).Msg("Notification sent")
	})
}

// OnMains reports whether the UPS is fed from its input
func OnMains(s telemetry.Snapshot) bool {
	return s.DeviceStatus.Has(telemetry.DevicePowerPresent) && !s.ChargeStatus.Has(telemetry.ChargeInputPowerFail)
}
