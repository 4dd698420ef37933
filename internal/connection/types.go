// Package connection maintains the websocket link to the ups-server status
// server and presents it as an event stream plus a command sink
package connection

import (
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

// State is the connection state owned by the Manager
type State int32

const (
	Disconnected State = iota
	Connected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// EventType identifies an event emitted by the Manager
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventData         EventType = "data"
)

// Event is one message from the Manager to the display.
// Snapshot is only meaningful for EventData
type Event struct {
	Type     EventType
	Snapshot telemetry.Snapshot
}

// Command is a request from the display to the Manager
type Command string

const (
	// CommandConnect starts the connection loop. Only the first one counts
	CommandConnect Command = "connect"

	// CommandStartCapEsrMeasurement asks the UPS to measure capacitance and ESR
	CommandStartCapEsrMeasurement Command = "capesr"
)

// UPS command ids understood by the status server. The server dispatches
// client requests on the first byte of the frame
const (
	wireStartCapEsrMeasurement byte = 0x31
)

// payload returns the wire representation of a command, or nil for
// commands that are handled locally
func (c Command) payload() []byte {
	switch c {
	case CommandStartCapEsrMeasurement:
		return []byte{wireStartCapEsrMeasurement}
	default:
		return nil
	}
}
