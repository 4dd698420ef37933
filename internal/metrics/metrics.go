package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState tracks the status server link (1 = connected, 0 = disconnected)
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ups_dashboard_connection_state",
			Help: "State of the websocket link to the UPS status server (1 = connected, 0 = disconnected)",
		},
	)

	// ConnectionAttemptsTotal tracks dial attempts
	ConnectionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ups_dashboard_connection_attempts_total",
			Help: "Total number of connection attempts to the UPS status server",
		},
		[]string{"result"}, // success, failure
	)

	// FramesTotal tracks inbound frames
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ups_dashboard_frames_total",
			Help: "Total number of inbound telemetry frames",
		},
		[]string{"result"}, // accepted, malformed, not_object
	)

	// CommandsTotal tracks outbound commands
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ups_dashboard_commands_total",
			Help: "Total number of commands forwarded to the UPS status server",
		},
		[]string{"command", "result"}, // sent, dropped, failed
	)

	// EventsTotal tracks events dispatched to the display
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ups_dashboard_events_total",
			Help: "Total number of connection events handled by the display",
		},
		[]string{"type"}, // connected, disconnected, data, unknown
	)

	// LastFrameTimestamp tracks the last accepted frame
	LastFrameTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ups_dashboard_last_frame_timestamp_seconds",
			Help: "Timestamp of the last accepted telemetry frame",
		},
	)

	// NotificationsTotal tracks power transition notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ups_dashboard_notifications_total",
			Help: "Total number of power transition notifications",
		},
		[]string{"result"}, // sent, failed
	)

	// BrowserClients tracks web dashboard clients
	BrowserClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ups_dashboard_browser_clients",
			Help: "Number of browsers connected to the web dashboard",
		},
	)
)
