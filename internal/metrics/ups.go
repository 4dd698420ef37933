package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/telemetry"
)

var (
	// Voltages tracks rail and cell voltages
	Voltages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ups_voltage_volts",
			Help: "UPS voltages as reported by the last telemetry frame",
		},
		[]string{"rail"}, // input, output, battery, cell1..cell4
	)

	// Currents tracks rail currents
	Currents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ups_current_amperes",
			Help: "UPS currents as reported by the last telemetry frame",
		},
		[]string{"rail"}, // input, output, battery
	)

	// Power tracks computed input/output power
	Power = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ups_power_watts",
			Help: "UPS power computed from voltage and current",
		},
		[]string{"rail"},
	)

	OutputLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_output_load_percent",
		Help: "UPS output load",
	})

	StateOfCharge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_soc_percent",
		Help: "UPS state of charge",
	})

	Capacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_capacity",
		Help: "Capacitor bank capacity as reported by the UPS",
	})

	ESR = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_esr",
		Help: "Capacitor bank equivalent series resistance as reported by the UPS",
	})

	BoardTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_board_temperature_celsius",
		Help: "UPS controller board temperature",
	})

	Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_uptime_seconds",
		Help: "UPS uptime",
	})

	// RemainingTime is -1 while the runtime estimate is unknown
	RemainingTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_remaining_seconds",
		Help: "Estimated remaining backup runtime (-1 = unknown/infinite)",
	})

	PowerFailCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ups_power_fail_count",
		Help: "Number of input power failures counted by the UPS",
	})

	// StatusBits tracks every known status register bit
	StatusBits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ups_status_bit",
			Help: "UPS status register bits (1 = set)",
		},
		[]string{"register", "bit"},
	)
)

// ObserveSnapshot exports one telemetry frame as gauges
func ObserveSnapshot(s telemetry.Snapshot) {
	Voltages.WithLabelValues("input").Set(s.InputVoltage)
	Voltages.WithLabelValues("output").Set(s.OutputVoltage)
	Voltages.WithLabelValues("battery").Set(s.BatteryVoltage)
	Voltages.WithLabelValues("cell1").Set(s.Cell1Voltage)
	Voltages.WithLabelValues("cell2").Set(s.Cell2Voltage)
	Voltages.WithLabelValues("cell3").Set(s.Cell3Voltage)
	Voltages.WithLabelValues("cell4").Set(s.Cell4Voltage)

	Currents.WithLabelValues("input").Set(s.InputCurrent / 1000)
	Currents.WithLabelValues("output").Set(s.OutputCurrent / 1000)
	Currents.WithLabelValues("battery").Set(s.BatteryCurrent / 1000)

	Power.WithLabelValues("input").Set(s.InputPower())
	Power.WithLabelValues("output").Set(s.OutputPower())

	OutputLoad.Set(s.OutputLoad)
	StateOfCharge.Set(s.SOC)
	Capacity.Set(s.Capacity)
	ESR.Set(s.ESR)
	BoardTemperature.Set(s.BoardTemperature)
	Uptime.Set(float64(s.Uptime))
	PowerFailCount.Set(float64(s.PowerFailCount))

	if s.RemainTime > 0 {
		RemainingTime.Set(float64(s.RemainTime))
	} else {
		RemainingTime.Set(-1)
	}

	for _, b := range deviceBits {
		setBit("device", b.name, s.DeviceStatus.Has(b.mask))
	}
	for _, b := range chargeBits {
		setBit("charge", b.name, s.ChargeStatus.Has(b.mask))
	}
	for _, b := range monitorBits {
		setBit("monitor", b.name, s.MonitorStatus.Has(b.mask))
	}
}

func setBit(register, name string, set bool) {
	v := 0.0
	if set {
		v = 1
	}
	StatusBits.WithLabelValues(register, name).Set(v)
}

type bit[T ~uint32] struct {
	name string
	mask T
}

var deviceBits = []bit[telemetry.DeviceStatus]{
	{"charging", telemetry.DeviceCharging},
	{"discharging", telemetry.DeviceDischarging},
	{"power_present", telemetry.DevicePowerPresent},
	{"battery_present", telemetry.DeviceBatteryPresent},
	{"shutdown_set", telemetry.DeviceShutdownSet},
	{"over_current", telemetry.DeviceOverCurrent},
}

var chargeBits = []bit[telemetry.ChargeStatus]{
	{"charging", telemetry.ChargeCharging},
	{"backup", telemetry.ChargeBackup},
	{"constant_voltage", telemetry.ChargeConstantVoltage},
	{"constant_current", telemetry.ChargeConstantCurrent},
	{"under_voltage", telemetry.ChargeUnderVoltage},
	{"input_current_limit", telemetry.ChargeInputCurrentLimit},
	{"capacitor_power_good", telemetry.ChargeCapacitorPowerGood},
	{"capacitor_shunting", telemetry.ChargeCapacitorShunting},
	{"capacitor_balancing", telemetry.ChargeCapacitorBalancing},
	{"charging_dup", telemetry.ChargeChargingDup},
	{"input_power_fail", telemetry.ChargeInputPowerFail},
}

var monitorBits = []bit[telemetry.MonitorStatus]{
	{"cap_esr_measuring", telemetry.MonitorCapEsrMeasuring},
	{"cap_esr_waiting_time", telemetry.MonitorCapEsrWaitingTime},
	{"cap_esr_waiting_condition", telemetry.MonitorCapEsrWaitingCondition},
	{"cap_measurement_complete", telemetry.MonitorCapMeasurementComplete},
	{"esr_measurement_complete", telemetry.MonitorEsrMeasurementComplete},
	{"cap_measurement_fail", telemetry.MonitorCapMeasurementFail},
	{"esr_measurement_fail", telemetry.MonitorEsrMeasurementFail},
	{"charger_disabled", telemetry.MonitorChargerDisabled},
	{"charger_enabled", telemetry.MonitorChargerEnabled},
}
