package display

import (
	"fmt"
	"strconv"

	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

// Control ids
const (
	ButtonCapEsr      = "buttonCapEsr"
	ConnectionSpinner = "connectionSpinner"
)

// Field is a text value rendered from a snapshot
type Field struct {
	ID     string
	Label  string
	Unit   string
	Group  string
	Format func(s telemetry.Snapshot) string
}

// Indicator is a boolean rendered from one status register bit
type Indicator struct {
	ID       string
	Label    string
	Register string // device, charge, monitor
	Set      func(s telemetry.Snapshot) bool
}

// Fields is the catalog of text fields in display order
var Fields = []Field{
	{"fieldPowerFailCount", "Power fails", "", "Input", func(s telemetry.Snapshot) string {
		return strconv.FormatInt(s.PowerFailCount, 10)
	}},
	{"fieldInputVoltage", "Voltage", "V", "Input", func(s telemetry.Snapshot) string {
		return fixed(s.InputVoltage, 1)
	}},
	{"fieldInputCurrent", "Current", "A", "Input", func(s telemetry.Snapshot) string {
		return fixed(s.InputCurrent/1000, 3)
	}},
	{"fieldInputPower", "Power", "W", "Input", func(s telemetry.Snapshot) string {
		return fixed(s.InputPower(), 1)
	}},

	{"fieldOutputVoltage", "Voltage", "V", "Output", func(s telemetry.Snapshot) string {
		return fixed(s.OutputVoltage, 1)
	}},
	{"fieldOutputCurrent", "Current", "A", "Output", func(s telemetry.Snapshot) string {
		return fixed(s.OutputCurrent/1000, 3)
	}},
	{"fieldOutputPower", "Power", "W", "Output", func(s telemetry.Snapshot) string {
		return fixed(s.OutputPower(), 1)
	}},
	{"fieldOutputLoad", "Load", "%", "Output", func(s telemetry.Snapshot) string {
		return fixed(s.OutputLoad, 0)
	}},

	{"fieldBatteryVoltage", "Voltage", "V", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.BatteryVoltage, 1)
	}},
	{"fieldBatteryCurrent", "Current", "A", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.BatteryCurrent/1000, 3)
	}},
	{"fieldCell1Voltage", "Cell 1", "V", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.Cell1Voltage, 1)
	}},
	{"fieldCell2Voltage", "Cell 2", "V", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.Cell2Voltage, 1)
	}},
	{"fieldCell3Voltage", "Cell 3", "V", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.Cell3Voltage, 1)
	}},
	{"fieldCell4Voltage", "Cell 4", "V", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.Cell4Voltage, 1)
	}},
	{"fieldCapacity", "Capacity", "F", "Battery", func(s telemetry.Snapshot) string {
		return fixed(s.Capacity/1000, 1)
	}},
	{"fieldEsr", "ESR", "mΩ", "Battery", func(s telemetry.Snapshot) string {
		return plain(s.ESR)
	}},
	{"fieldSoc", "SOC", "%", "Battery", func(s telemetry.Snapshot) string {
		return plain(s.SOC)
	}},

	{"fieldBoardTemperature", "Temperature", "°C", "System", func(s telemetry.Snapshot) string {
		return plain(s.BoardTemperature)
	}},
	{"fieldUptime", "Uptime", "", "System", func(s telemetry.Snapshot) string {
		return FormatUptime(s.Uptime)
	}},
	{"fieldRemainingTime", "Remaining", "", "System", func(s telemetry.Snapshot) string {
		return FormatRemaining(s.RemainTime)
	}},

	{"fieldSeries", "Series", "", "Identity", func(s telemetry.Snapshot) string { return s.Series }},
	{"fieldType", "Battery type", "", "Identity", func(s telemetry.Snapshot) string { return s.BatteryType }},
	{"fieldHardware", "Hardware", "", "Identity", func(s telemetry.Snapshot) string { return s.HWRevision }},
	{"fieldFirmware", "Firmware", "", "Identity", func(s telemetry.Snapshot) string { return s.Firmware }},
}

// Indicators is the catalog of status bits in display order
var Indicators = []Indicator{
	device("checkDevCharging", "Charging", telemetry.DeviceCharging),
	device("checkDevDischarging", "Discharging", telemetry.DeviceDischarging),
	device("checkDevPowerPresent", "Power present", telemetry.DevicePowerPresent),
	device("checkDevBatteryPresent", "Battery present", telemetry.DeviceBatteryPresent),
	device("checkDevShutdownSet", "Shutdown set", telemetry.DeviceShutdownSet),
	device("checkDevOverCurrent", "Over current", telemetry.DeviceOverCurrent),

	charge("checkCharging", "Charging", telemetry.ChargeCharging),
	charge("checkBackup", "Backup", telemetry.ChargeBackup),
	charge("checkConstantVoltage", "Constant voltage", telemetry.ChargeConstantVoltage),
	charge("checkConstantCurrent", "Constant current", telemetry.ChargeConstantCurrent),
	charge("checkUnderVoltage", "Under voltage", telemetry.ChargeUnderVoltage),
	charge("checkInputCurrentLimit", "Input current limit", telemetry.ChargeInputCurrentLimit),
	charge("checkCapacitorPowerGood", "Capacitor power good", telemetry.ChargeCapacitorPowerGood),
	charge("checkCapacitorShunting", "Capacitor shunting", telemetry.ChargeCapacitorShunting),
	charge("checkCapacitorBalancing", "Capacitor balancing", telemetry.ChargeCapacitorBalancing),
	charge("checkChargingDup", "Charging (0x200)", telemetry.ChargeChargingDup),
	charge("checkInputPowerFail", "Input power fail", telemetry.ChargeInputPowerFail),

	monitor("checkCapEsrMeasurement", "Cap/ESR measuring", telemetry.MonitorCapEsrMeasuring),
	monitor("checkCapEsrWaitingTime", "Waiting (time)", telemetry.MonitorCapEsrWaitingTime),
	monitor("checkCapEsrWaitingCondition", "Waiting (condition)", telemetry.MonitorCapEsrWaitingCondition),
	monitor("checkCapMeasurementComplete", "Cap measurement complete", telemetry.MonitorCapMeasurementComplete),
	monitor("checkEsrMeasurementComplete", "ESR measurement complete", telemetry.MonitorEsrMeasurementComplete),
	monitor("checkCapMeasurementFail", "Cap measurement failed", telemetry.MonitorCapMeasurementFail),
	monitor("checkEsrMeasurementFail", "ESR measurement failed", telemetry.MonitorEsrMeasurementFail),
	monitor("checkChargerDisabled", "Charger disabled", telemetry.MonitorChargerDisabled),
	monitor("checkChargerEnabled", "Charger enabled", telemetry.MonitorChargerEnabled),
}

func device(id, label string, bit telemetry.DeviceStatus) Indicator {
	return Indicator{id, label, "device", func(s telemetry.Snapshot) bool { return s.DeviceStatus.Has(bit) }}
}

func charge(id, label string, bit telemetry.ChargeStatus) Indicator {
	return Indicator{id, label, "charge", func(s telemetry.Snapshot) bool { return s.ChargeStatus.Has(bit) }}
}

func monitor(id, label string, bit telemetry.MonitorStatus) Indicator {
	return Indicator{id, label, "monitor", func(s telemetry.Snapshot) bool { return s.MonitorStatus.Has(bit) }}
}

// FormatUptime renders seconds as "D Days, HH:MM". Seconds are truncated
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	seconds -= days * 86400
	hours := seconds / 3600
	seconds -= hours * 3600
	minutes := seconds / 60
	return fmt.Sprintf("%d Days, %02d:%02d", days, hours, minutes)
}

// Infinity is shown while no runtime estimate is available
const Infinity = "∞"

// FormatRemaining renders a positive runtime estimate as a clock-style
// "HH:MM:SS" (wrapping at 24 hours) and anything else as Infinity
func FormatRemaining(seconds int64) string {
	if seconds <= 0 {
		return Infinity
	}
	seconds %= 86400
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
