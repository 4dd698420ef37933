package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/metrics"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

const (
	// Time allowed to write a command to the server
	writeWait = 10 * time.Second

	// Time allowed for the websocket handshake
	handshakeTimeout = 10 * time.Second

	// Maximum frame size accepted from the server
	maxMessageSize = 8192

	eventBufferSize   = 64
	commandBufferSize = 16
)

// Manager owns the single connection to the UPS status server
type Manager struct {
	// Configuration
	ServerURL   string
	Subprotocol string

	// Policy yields the delay before each reconnect attempt
	Policy backoff.BackOff

	// After waits for a delay; replaced in tests
	After func(time.Duration) <-chan time.Time

	dialer *websocket.Dialer
	logger zerolog.Logger

	events   chan Event
	commands chan Command

	state atomic.Int32
}

// NewManager creates a Manager that reconnects after a fixed delay
func NewManager(serverURL, subprotocol string, reconnectDelay time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		ServerURL:   serverURL,
		Subprotocol: subprotocol,
		Policy:      backoff.NewConstantBackOff(reconnectDelay),
		After:       time.After,
		dialer: &websocket.Dialer{
			Subprotocols:     []string{subprotocol},
			HandshakeTimeout: handshakeTimeout,
		},
		logger:   logger.With().Str("component", "connection").Logger(),
		events:   make(chan Event, eventBufferSize),
		commands: make(chan Command, commandBufferSize),
	}
}

// Events returns the stream of connection and data events
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current connection state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Send forwards a command without blocking. Commands other than
// CommandConnect are dropped while no connection is open
func (m *Manager) Send(cmd Command) {
	if cmd != CommandConnect && m.State() != Connected {
		m.logger.Debug().Str("command", string(cmd)).Msg("Not connected, command dropped")
		metrics.CommandsTotal.WithLabelValues(string(cmd), "dropped").Inc()
		return
	}

	select {
	case m.commands <- cmd:
	default:
		m.logger.Warn().Str("command", string(cmd)).Msg("Command buffer full, command dropped")
		metrics.CommandsTotal.WithLabelValues(string(cmd), "dropped").Inc()
	}
}

// Run waits for CommandConnect and then keeps the connection alive until
// ctx is cancelled. Every closure is followed by exactly one reconnect
// attempt after the policy delay; the loop never gives up
func (m *Manager) Run(ctx context.Context) error {
	if err := m.awaitConnect(ctx); err != nil {
		return err
	}

	m.Policy.Reset()
	for {
		m.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := m.Policy.NextBackOff()
		if delay == backoff.Stop {
			delay = 0
		}
		m.logger.Info().Dur("delay", delay).Msg("Reconnect scheduled")

		if err := m.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (m *Manager) awaitConnect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-m.commands:
			if cmd == CommandConnect {
				return nil
			}
			m.dropCommand(cmd)
		}
	}
}

// wait sleeps for the reconnect delay. Commands arriving meanwhile are dropped
func (m *Manager) wait(ctx context.Context, delay time.Duration) error {
	timer := m.After(delay)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer:
			return nil
		case cmd := <-m.commands:
			m.dropCommand(cmd)
		}
	}
}

// session dials once and serves the connection until it closes
func (m *Manager) session(ctx context.Context) {
	logger := m.logger.With().Str("session", uuid.NewString()).Logger()
	logger.Info().Str("url", m.ServerURL).Str("subprotocol", m.Subprotocol).Msg("Connecting to UPS status server")

	conn, _, err := m.dialer.DialContext(ctx, m.ServerURL, nil)
	if err != nil {
		metrics.ConnectionAttemptsTotal.WithLabelValues("failure").Inc()
		logger.Warn().Err(err).Msg("Connection failed")
		m.emit(ctx, Event{Type: EventDisconnected})
		return
	}
	conn.SetReadLimit(maxMessageSize)

	metrics.ConnectionAttemptsTotal.WithLabelValues("success").Inc()
	m.setState(Connected)
	logger.Info().Msg("Connected with websocket port")
	m.emit(ctx, Event{Type: EventConnected})

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	go readLoop(conn, frames, readErr, done)

	defer func() {
		close(done)
		conn.Close()
		m.setState(Disconnected)
		m.emit(ctx, Event{Type: EventDisconnected})
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			logger.Info().Msg("Connection closed on shutdown")
			return

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Msg("Connection closed")
			} else {
				logger.Warn().Err(err).Msg("Connection lost")
			}
			return

		case data := <-frames:
			m.handleFrame(ctx, logger, data)

		case cmd := <-m.commands:
			if err := m.write(conn, cmd); err != nil {
				logger.Error().Err(err).Str("command", string(cmd)).Msg("Failed to send command")
				return
			}
		}
	}
}

func readLoop(conn *websocket.Conn, frames chan<- []byte, readErr chan<- error, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- data:
		case <-done:
			return
		}
	}
}

func (m *Manager) handleFrame(ctx context.Context, logger zerolog.Logger, data []byte) {
	snapshot, err := telemetry.Decode(data)
	if err != nil {
		result := "malformed"
		if errors.Is(err, telemetry.ErrNotObject) {
			result = "not_object"
		}
		metrics.FramesTotal.WithLabelValues(result).Inc()
		logger.Debug().Err(err).Int("bytes", len(data)).Msg("Ignoring telemetry frame")
		return
	}

	metrics.FramesTotal.WithLabelValues("accepted").Inc()
	metrics.LastFrameTimestamp.SetToCurrentTime()
	m.emit(ctx, Event{Type: EventData, Snapshot: snapshot})
}

func (m *Manager) write(conn *websocket.Conn, cmd Command) error {
	payload := cmd.payload()
	if payload == nil {
		m.logger.Debug().Str("command", string(cmd)).Msg("Command has no wire form, ignored")
		return nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		metrics.CommandsTotal.WithLabelValues(string(cmd), "failed").Inc()
		return err
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd), "sent").Inc()
	m.logger.Info().Str("command", string(cmd)).Msg("Command sent")
	return nil
}

func (m *Manager) dropCommand(cmd Command) {
	if cmd == CommandConnect {
		m.logger.Debug().Msg("Already connecting, connect command ignored")
		return
	}
	m.logger.Debug().Str("command", string(cmd)).Msg("Not connected, command dropped")
	metrics.CommandsTotal.WithLabelValues(string(cmd), "dropped").Inc()
}

// emit delivers an event in order; it blocks only while the event buffer is
// full and gives up when ctx is cancelled
func (m *Manager) emit(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	if s == Connected {
		metrics.ConnectionState.Set(1)
	} else {
		metrics.ConnectionState.Set(0)
	}
}
