package display

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/connection"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

type fakeCommander struct {
	mu   sync.Mutex
	sent []connection.Command
}

func (f *fakeCommander) Send(cmd connection.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
}

func (f *fakeCommander) commands() []connection.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]connection.Command(nil), f.sent...)
}

func newTestBinder(observers ...Observer) (*Binder, *MemorySurface, *fakeCommander) {
	surface := NewMemorySurface()
	cmds := &fakeCommander{}
	return NewBinder(surface, cmds, zerolog.Nop(), observers...), surface, cmds
}

func TestOnData_InputScenario(t *testing.T) {
	b, surface, _ := newTestBinder()

	b.OnData(telemetry.Snapshot{InputVoltage: 230.0, InputCurrent: 1000})

	tests := map[string]string{
		"fieldInputVoltage":   "230.0",
		"fieldInputCurrent":   "1.000",
		"fieldInputPower":     "230.0",
		"fieldOutputVoltage":  "0.0",
		"fieldOutputLoad":     "0",
		"fieldRemainingTime":  Infinity,
		"fieldUptime":         "0 Days, 00:00",
		"fieldPowerFailCount": "0",
	}
	for id, want := range tests {
		if got := surface.Text(id); got != want {
			t.Errorf("%s = %q, want %q", id, got, want)
		}
	}
}

func TestOnData_AllFields(t *testing.T) {
	b, surface, _ := newTestBinder()

	b.OnData(telemetry.Snapshot{
		PowerFailCount:   3,
		OutputVoltage:    24.04,
		OutputCurrent:    1523,
		OutputLoad:       42,
		BatteryVoltage:   11.96,
		BatteryCurrent:   -250,
		Cell1Voltage:     2.71,
		Capacity:         12345,
		ESR:              35.5,
		SOC:              97,
		BoardTemperature: 41.25,
		Uptime:           90061,
		RemainTime:       3661,
		Series:           "PSZ-1063",
		BatteryType:      "UC",
		HWRevision:       "1.2",
		Firmware:         "2.05",
	})

	tests := map[string]string{
		"fieldPowerFailCount":   "3",
		"fieldOutputVoltage":    "24.0",
		"fieldOutputCurrent":    "1.523",
		"fieldOutputPower":      "36.6",
		"fieldOutputLoad":       "42",
		"fieldBatteryVoltage":   "12.0",
		"fieldBatteryCurrent":   "-0.250",
		"fieldCell1Voltage":     "2.7",
		"fieldCapacity":         "12.3",
		"fieldEsr":              "35.5",
		"fieldSoc":              "97",
		"fieldBoardTemperature": "41.25",
		"fieldUptime":           "1 Days, 01:01",
		"fieldRemainingTime":    "01:01:01",
		"fieldSeries":           "PSZ-1063",
		"fieldType":             "UC",
		"fieldHardware":         "1.2",
		"fieldFirmware":         "2.05",
	}
	for id, want := range tests {
		if got := surface.Text(id); got != want {
			t.Errorf("%s = %q, want %q", id, got, want)
		}
	}
}

func TestOnData_Idempotent(t *testing.T) {
	b, surface, _ := newTestBinder()
	s := telemetry.Snapshot{
		InputVoltage:  229.7,
		InputCurrent:  812,
		Uptime:        123456,
		RemainTime:    77,
		DeviceStatus:  telemetry.DevicePowerPresent | telemetry.DeviceBatteryPresent,
		ChargeStatus:  telemetry.ChargeCapacitorPowerGood,
		MonitorStatus: telemetry.MonitorCapEsrMeasuring,
	}
	before := s

	b.OnData(s)
	first := surface.State()
	b.OnData(s)
	second := surface.State()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second render changed surface:\nfirst  %+v\nsecond %+v", first, second)
	}
	if s != before {
		t.Error("OnData modified the snapshot")
	}
	if len(first.Text) != len(Fields) {
		t.Errorf("rendered %d text fields, want %d", len(first.Text), len(Fields))
	}
	if got := surface.Flushes(); got != 2 {
		t.Errorf("Flushes() = %d, want 2", got)
	}
	if len(first.Checked) != len(Indicators) {
		t.Errorf("rendered %d indicators, want %d", len(first.Checked), len(Indicators))
	}
}

func TestOnData_SingleBit(t *testing.T) {
	known := map[string]map[uint]bool{
		"device":  {0: true, 1: true, 2: true, 3: true, 4: true, 5: true},
		"charge":  {0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 11: true},
		"monitor": {0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 8: true, 9: true},
	}

	for register, bits := range known {
		for shift := uint(0); shift < 16; shift++ {
			var s telemetry.Snapshot
			switch register {
			case "device":
				s.DeviceStatus = telemetry.DeviceStatus(1) << shift
			case "charge":
				s.ChargeStatus = telemetry.ChargeStatus(1) << shift
			case "monitor":
				s.MonitorStatus = telemetry.MonitorStatus(1) << shift
			}

			b, surface, _ := newTestBinder()
			b.OnData(s)

			var checked []string
			for _, ind := range Indicators {
				if surface.Checked(ind.ID) {
					if ind.Register != register {
						t.Errorf("%s bit %d set %s from register %s", register, shift, ind.ID, ind.Register)
					}
					checked = append(checked, ind.ID)
				}
			}

			want := 0
			if bits[shift] {
				want = 1
			}
			if len(checked) != want {
				t.Errorf("%s bit %d checked %v, want %d indicator(s)", register, shift, checked, want)
			}
		}
	}
}

func TestOnData_IndicatorIDs(t *testing.T) {
	tests := []struct {
		id string
		s  telemetry.Snapshot
	}{
		{"checkDevPowerPresent", telemetry.Snapshot{DeviceStatus: 0x04}},
		{"checkDevOverCurrent", telemetry.Snapshot{DeviceStatus: 0x20}},
		{"checkChargingDup", telemetry.Snapshot{ChargeStatus: 0x200}},
		{"checkInputPowerFail", telemetry.Snapshot{ChargeStatus: 0x800}},
		{"checkCapEsrMeasurement", telemetry.Snapshot{MonitorStatus: 0x01}},
		{"checkChargerDisabled", telemetry.Snapshot{MonitorStatus: 0x100}},
		{"checkChargerEnabled", telemetry.Snapshot{MonitorStatus: 0x200}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			b, surface, _ := newTestBinder()
			b.OnData(tt.s)
			if !surface.Checked(tt.id) {
				t.Errorf("%s not checked", tt.id)
			}
		})
	}
}

func TestOnData_MeasurementButton(t *testing.T) {
	b, surface, _ := newTestBinder()

	b.OnData(telemetry.Snapshot{MonitorStatus: telemetry.MonitorCapEsrMeasuring | telemetry.MonitorChargerEnabled})
	if enabled, ok := surface.Enabled(ButtonCapEsr); !ok || enabled {
		t.Errorf("button enabled = %v (set %v), want disabled while measuring", enabled, ok)
	}

	b.OnData(telemetry.Snapshot{MonitorStatus: telemetry.MonitorCapMeasurementComplete})
	if enabled, ok := surface.Enabled(ButtonCapEsr); !ok || !enabled {
		t.Errorf("button enabled = %v (set %v), want enabled", enabled, ok)
	}
}

func TestBinder_SpinnerScenario(t *testing.T) {
	b, surface, cmds := newTestBinder()

	b.Start()
	if got := cmds.commands(); !reflect.DeepEqual(got, []connection.Command{connection.CommandConnect}) {
		t.Fatalf("commands after Start() = %v, want [connect]", got)
	}
	if visible, _ := surface.Visible(ConnectionSpinner); !visible {
		t.Error("spinner hidden before connecting")
	}
	if enabled, ok := surface.Enabled(ButtonCapEsr); !ok || !enabled {
		t.Errorf("button enabled after Start() = %v (set %v), want enabled", enabled, ok)
	}

	steps := []struct {
		ev          connection.EventType
		wantVisible bool
	}{
		{connection.EventConnected, false},
		{connection.EventDisconnected, true},
		{connection.EventConnected, false},
	}
	for _, step := range steps {
		if err := b.Dispatch(connection.Event{Type: step.ev}); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", step.ev, err)
		}
		if visible, _ := surface.Visible(ConnectionSpinner); visible != step.wantVisible {
			t.Errorf("after %s spinner visible = %v, want %v", step.ev, visible, step.wantVisible)
		}
	}
}

func TestBinder_DispatchUnknown(t *testing.T) {
	b, surface, _ := newTestBinder()

	err := b.Dispatch(connection.Event{Type: "reboot"})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Dispatch() error = %v, want %v", err, ErrUnknownEvent)
	}
	if surface.Calls() != 0 {
		t.Errorf("surface received %d calls, want 0", surface.Calls())
	}
}

func TestBinder_UserRequestMeasurement(t *testing.T) {
	b, _, cmds := newTestBinder()

	b.OnUserRequestMeasurement()
	b.OnUserRequestMeasurement()

	want := []connection.Command{connection.CommandStartCapEsrMeasurement, connection.CommandStartCapEsrMeasurement}
	if got := cmds.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestBinder_Run(t *testing.T) {
	var observed []telemetry.Snapshot
	b, surface, _ := newTestBinder(func(s telemetry.Snapshot) {
		observed = append(observed, s)
	})

	events := make(chan connection.Event, 4)
	events <- connection.Event{Type: connection.EventConnected}
	events <- connection.Event{Type: "bogus"}
	events <- connection.Event{Type: connection.EventData, Snapshot: telemetry.Snapshot{SOC: 88}}
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Run(ctx, events); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := surface.Text("fieldSoc"); got != "88" {
		t.Errorf("fieldSoc = %q, want %q", got, "88")
	}
	if visible, _ := surface.Visible(ConnectionSpinner); visible {
		t.Error("spinner visible after connect")
	}
	if len(observed) != 1 || observed[0].SOC != 88 {
		t.Errorf("observed = %+v, want one snapshot with SOC 88", observed)
	}
}

func TestBinder_RunCancelled(t *testing.T) {
	b, _, _ := newTestBinder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Run(ctx, make(chan connection.Event)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestLogSurface_LogsChangesOnly(t *testing.T) {
	var buf bytes.Buffer
	surface := NewLogSurface(zerolog.New(&buf))

	surface.SetText("fieldSoc", "90")
	surface.SetText("fieldSoc", "90")
	surface.SetText("fieldSoc", "91")
	surface.SetChecked("checkBackup", false)
	surface.SetChecked("checkBackup", false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("logged %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"value":"91"`) {
		t.Errorf("second line = %s, want value 91", lines[1])
	}
}
