package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedFrame is returned for payloads that are not valid JSON or
	// whose fields have the wrong types
	ErrMalformedFrame = errors.New("malformed telemetry frame")

	// ErrNotObject is returned for valid JSON that is not an object,
	// e.g. null, a number, a string or an array
	ErrNotObject = errors.New("telemetry frame is not a JSON object")
)

// Decode parses one server frame into a Snapshot. Fields the server adds
// beyond the known set are ignored; missing fields keep their zero value
func Decode(frame []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(frame)
	if !json.Valid(trimmed) {
		return Snapshot{}, ErrMalformedFrame
	}
	if trimmed[0] != '{' {
		return Snapshot{}, ErrNotObject
	}

	var s Snapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return s, nil
}

// UnmarshalJSON reads the counters and status registers as JSON numbers of
// any form. Fractions are truncated and registers keep their low 32 bits,
// so one oddly encoded field never costs the rest of the frame
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	aux := struct {
		*plain
		PowerFailCount *float64 `json:"powerFailCount"`
		Uptime         *float64 `json:"uptime"`
		RemainTime     *float64 `json:"remainTime"`
		DeviceStatus   *float64 `json:"deviceStatus"`
		ChargeStatus   *float64 `json:"chargeStatus"`
		MonitorStatus  *float64 `json:"monitorStatus"`
	}{plain: (*plain)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.PowerFailCount != nil {
		s.PowerFailCount = toInt64(*aux.PowerFailCount)
	}
	if aux.Uptime != nil {
		s.Uptime = toInt64(*aux.Uptime)
	}
	if aux.RemainTime != nil {
		s.RemainTime = toInt64(*aux.RemainTime)
	}
	if aux.DeviceStatus != nil {
		s.DeviceStatus = DeviceStatus(register(*aux.DeviceStatus))
	}
	if aux.ChargeStatus != nil {
		s.ChargeStatus = ChargeStatus(register(*aux.ChargeStatus))
	}
	if aux.MonitorStatus != nil {
		s.MonitorStatus = MonitorStatus(register(*aux.MonitorStatus))
	}
	return nil
}

// toInt64 truncates toward zero and saturates at the int64 range
func toInt64(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func register(f float64) uint32 {
	return uint32(uint64(toInt64(f)))
}
