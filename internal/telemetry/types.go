// Package telemetry defines the UPS status record published by the ups-server
// broadcast protocol and the status register bitmasks it carries
package telemetry

// Snapshot is one UPS status frame as received from the server.
// Snapshots are values; consumers read them and never modify them
type Snapshot struct {
	PowerFailCount int64 `json:"powerFailCount"`

	InputVoltage  float64 `json:"inputVoltage"`  // volts
	InputCurrent  float64 `json:"inputCurrent"`  // milliamps
	OutputVoltage float64 `json:"outputVoltage"` // volts
	OutputCurrent float64 `json:"outputCurrent"` // milliamps
	OutputLoad    float64 `json:"outputLoad"`    // percent

	BatteryVoltage float64 `json:"batteryVoltage"` // volts
	BatteryCurrent float64 `json:"batteryCurrent"` // milliamps

	Cell1Voltage float64 `json:"vcap1Voltage"`
	Cell2Voltage float64 `json:"vcap2Voltage"`
	Cell3Voltage float64 `json:"vcap3Voltage"`
	Cell4Voltage float64 `json:"vcap4Voltage"`

	Capacity         float64 `json:"capacity"`
	ESR              float64 `json:"esr"`
	SOC              float64 `json:"soc"`
	BoardTemperature float64 `json:"ucTemperature"`

	Uptime     int64 `json:"uptime"`     // seconds
	RemainTime int64 `json:"remainTime"` // seconds, <= 0 means unknown

	DeviceStatus  DeviceStatus  `json:"deviceStatus"`
	ChargeStatus  ChargeStatus  `json:"chargeStatus"`
	MonitorStatus MonitorStatus `json:"monitorStatus"`

	Series      string `json:"series"`
	BatteryType string `json:"batteryType"`
	HWRevision  string `json:"hwRevision"`
	Firmware    string `json:"firmware"`
}

// InputPower returns the input power in watts
func (s Snapshot) InputPower() float64 {
	return s.InputVoltage * (s.InputCurrent / 1000)
}

// OutputPower returns the output power in watts
func (s Snapshot) OutputPower() float64 {
	return s.OutputVoltage * (s.OutputCurrent / 1000)
}

// MeasurementRunning reports whether a capacitance/ESR measurement is in progress
func (s Snapshot) MeasurementRunning() bool {
	return s.MonitorStatus.Has(MonitorCapEsrMeasuring)
}

// DeviceStatus is the UPSIC device status register
type DeviceStatus uint32

const (
	DeviceCharging       DeviceStatus = 0x01
	DeviceDischarging    DeviceStatus = 0x02
	DevicePowerPresent   DeviceStatus = 0x04
	DeviceBatteryPresent DeviceStatus = 0x08
	DeviceShutdownSet    DeviceStatus = 0x10
	DeviceOverCurrent    DeviceStatus = 0x20
)

// Has reports whether bit is set
func (d DeviceStatus) Has(bit DeviceStatus) bool { return d&bit != 0 }

// ChargeStatus is the LTC3350 charge status register
type ChargeStatus uint32

const (
	ChargeCharging           ChargeStatus = 0x01
	ChargeBackup             ChargeStatus = 0x02
	ChargeConstantVoltage    ChargeStatus = 0x04
	ChargeConstantCurrent    ChargeStatus = 0x08
	ChargeUnderVoltage       ChargeStatus = 0x10
	ChargeInputCurrentLimit  ChargeStatus = 0x20
	ChargeCapacitorPowerGood ChargeStatus = 0x40
	ChargeCapacitorShunting  ChargeStatus = 0x80
	ChargeCapacitorBalancing ChargeStatus = 0x100
	ChargeChargingDup        ChargeStatus = 0x200
	ChargeInputPowerFail     ChargeStatus = 0x800
)

// Has reports whether bit is set
func (c ChargeStatus) Has(bit ChargeStatus) bool { return c&bit != 0 }

// MonitorStatus is the LTC3350 monitor status register
type MonitorStatus uint32

const (
	MonitorCapEsrMeasuring        MonitorStatus = 0x01
	MonitorCapEsrWaitingTime      MonitorStatus = 0x02
	MonitorCapEsrWaitingCondition MonitorStatus = 0x04
	MonitorCapMeasurementComplete MonitorStatus = 0x08
	MonitorEsrMeasurementComplete MonitorStatus = 0x10
	MonitorCapMeasurementFail     MonitorStatus = 0x20
	MonitorEsrMeasurementFail     MonitorStatus = 0x40
	MonitorChargerDisabled        MonitorStatus = 0x100
	MonitorChargerEnabled         MonitorStatus = 0x200
)

// Has reports whether bit is set
func (m MonitorStatus) Has(bit MonitorStatus) bool { return m&bit != 0 }
