package connection

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const testTimeout = 5 * time.Second

func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{"broadcast"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

// closeFromServer sends a normal close frame and waits for the client reply
func closeFromServer(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// recordingAfter records requested delays and never fires
func recordingAfter(delays chan<- time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		delays <- d
		return nil
	}
}

func immediateAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func startManager(t *testing.T, m *Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Run() did not return")
		return nil
	}
}

func TestManager_FramesAndClose(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		for _, frame := range []string{
			`null`,
			`{"inputVoltage": 230}`,
			`"just a string"`,
			`{bad json`,
			`42`,
			`{"inputVoltage": 231, "monitorStatus": 1}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				t.Errorf("WriteMessage() error = %v", err)
				return
			}
		}
		closeFromServer(conn)
	})

	delays := make(chan time.Duration, 4)
	m := NewManager(wsURL(srv), "broadcast", 10*time.Second, zerolog.Nop())
	m.After = recordingAfter(delays)

	cancel, errCh := startManager(t, m)
	m.Send(CommandConnect)

	if ev := nextEvent(t, m.Events()); ev.Type != EventConnected {
		t.Fatalf("event 1 = %v, want %v", ev.Type, EventConnected)
	}

	ev := nextEvent(t, m.Events())
	if ev.Type != EventData || ev.Snapshot.InputVoltage != 230 {
		t.Fatalf("event 2 = %v (inputVoltage %v), want data with 230", ev.Type, ev.Snapshot.InputVoltage)
	}

	ev = nextEvent(t, m.Events())
	if ev.Type != EventData || ev.Snapshot.InputVoltage != 231 {
		t.Fatalf("event 3 = %v (inputVoltage %v), want data with 231", ev.Type, ev.Snapshot.InputVoltage)
	}
	if !ev.Snapshot.MeasurementRunning() {
		t.Error("MeasurementRunning() = false, want true")
	}

	if ev := nextEvent(t, m.Events()); ev.Type != EventDisconnected {
		t.Fatalf("event 4 = %v, want %v", ev.Type, EventDisconnected)
	}

	select {
	case d := <-delays:
		if d != 10*time.Second {
			t.Errorf("reconnect delay = %v, want %v", d, 10*time.Second)
		}
	case <-time.After(testTimeout):
		t.Fatal("no reconnect scheduled")
	}

	select {
	case d := <-delays:
		t.Errorf("unexpected second reconnect scheduled (%v)", d)
	case <-time.After(50 * time.Millisecond):
	}

	if m.State() != Disconnected {
		t.Errorf("State() = %v, want %v", m.State(), Disconnected)
	}

	cancel()
	if err := waitRun(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestManager_ReconnectsAfterClose(t *testing.T) {
	var accepted atomic.Int32
	srv := newTestServer(t, func(conn *websocket.Conn) {
		accepted.Add(1)
		closeFromServer(conn)
	})

	m := NewManager(wsURL(srv), "broadcast", time.Millisecond, zerolog.Nop())
	m.After = immediateAfter

	startManager(t, m)
	m.Send(CommandConnect)

	want := []EventType{EventConnected, EventDisconnected, EventConnected}
	for i, w := range want {
		if ev := nextEvent(t, m.Events()); ev.Type != w {
			t.Fatalf("event %d = %v, want %v", i+1, ev.Type, w)
		}
	}
	if accepted.Load() < 2 {
		t.Errorf("server accepted %d connections, want at least 2", accepted.Load())
	}
}

func TestManager_DialFailureSchedulesReconnect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	delays := make(chan time.Duration, 4)
	m := NewManager(url, "broadcast", 10*time.Second, zerolog.Nop())
	m.After = recordingAfter(delays)

	startManager(t, m)
	m.Send(CommandConnect)

	if ev := nextEvent(t, m.Events()); ev.Type != EventDisconnected {
		t.Fatalf("event = %v, want %v", ev.Type, EventDisconnected)
	}

	select {
	case d := <-delays:
		if d != 10*time.Second {
			t.Errorf("reconnect delay = %v, want %v", d, 10*time.Second)
		}
	case <-time.After(testTimeout):
		t.Fatal("no reconnect scheduled")
	}
}

func TestManager_SendCapEsr(t *testing.T) {
	received := make(chan []byte, 4)
	srv := newTestServer(t, func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				received <- data
			}
		}
	})

	m := NewManager(wsURL(srv), "broadcast", 10*time.Second, zerolog.Nop())
	m.After = recordingAfter(make(chan time.Duration, 4))

	// Dropped: nothing is connected yet
	m.Send(CommandStartCapEsrMeasurement)

	cancel, errCh := startManager(t, m)
	m.Send(CommandConnect)

	if ev := nextEvent(t, m.Events()); ev.Type != EventConnected {
		t.Fatalf("event = %v, want %v", ev.Type, EventConnected)
	}

	m.Send(CommandStartCapEsrMeasurement)

	select {
	case data := <-received:
		if !bytes.Equal(data, []byte{0x31}) {
			t.Errorf("command payload = %x, want 31", data)
		}
	case <-time.After(testTimeout):
		t.Fatal("server did not receive command")
	}

	select {
	case data := <-received:
		t.Errorf("unexpected extra command %x", data)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := waitRun(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestManager_WaitsForConnectCommand(t *testing.T) {
	var accepted atomic.Int32
	srv := newTestServer(t, func(conn *websocket.Conn) {
		accepted.Add(1)
		closeFromServer(conn)
	})

	m := NewManager(wsURL(srv), "broadcast", 10*time.Second, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := m.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if n := accepted.Load(); n != 0 {
		t.Errorf("server accepted %d connections before connect, want 0", n)
	}
	if m.State() != Disconnected {
		t.Errorf("State() = %v, want %v", m.State(), Disconnected)
	}
}

func TestCommand_Payload(t *testing.T) {
	tests := []struct {
		cmd  Command
		want []byte
	}{
		{CommandStartCapEsrMeasurement, []byte{0x31}},
		{CommandConnect, nil},
		{Command("bogus"), nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			if got := tt.cmd.payload(); !bytes.Equal(got, tt.want) {
				t.Errorf("payload() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	if got := Connected.String(); got != "connected" {
		t.Errorf("Connected.String() = %q, want %q", got, "connected")
	}
	if got := Disconnected.String(); got != "disconnected" {
		t.Errorf("Disconnected.String() = %q, want %q", got, "disconnected")
	}
}
