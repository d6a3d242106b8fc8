package model

import (
	"encoding/json"
	"strings"
	"time"
)

// PumpMode selects how the pump output is driven.
type PumpMode string

const (
	ModeAuto   PumpMode = "auto"
	ModeManual PumpMode = "manual"
)

// Manual reports whether the mode forces the pump to the override value.
// Any value other than "manual" behaves as automatic control.
func (m PumpMode) Manual() bool { return m == ModeManual }

// Settings is the device configuration served by the backend. The
// authoritative copy lives server-side; a device holds a working copy
// rebuilt from defaults on every fetch and mutated in place by pushed
// patches.
type Settings struct {
	PumpMode        PumpMode `json:"pumpMode"`
	OverridePumpOn  bool     `json:"overridePumpOn"`
	PumpOnBelow     int      `json:"pumpOnBelow"`
	PumpOffAbove    int      `json:"pumpOffAbove"`
	SendIntervalSec float64  `json:"sendIntervalSec"`
}

// DefaultSettings returns the values a device runs with until the first
// fetch succeeds. fallback is the locally configured send interval.
func DefaultSettings(fallback time.Duration) Settings {
	return Settings{
		PumpMode:        ModeAuto,
		PumpOnBelow:     35,
		PumpOffAbove:    45,
		SendIntervalSec: fallback.Seconds(),
	}
}

// SendInterval converts the configured interval to a Duration.
func (s Settings) SendInterval() time.Duration {
	return time.Duration(s.SendIntervalSec * float64(time.Second))
}

// SettingsPatch is a partial Settings update. Nil fields leave the base
// value alone. The same shape covers both a settings fetch response
// (overlaid on defaults) and a pushed command patch (overlaid on the
// working copy).
type SettingsPatch struct {
	PumpMode        *PumpMode `json:"pumpMode"`
	OverridePumpOn  *bool     `json:"overridePumpOn"`
	PumpOnBelow     *int      `json:"pumpOnBelow"`
	PumpOffAbove    *int      `json:"pumpOffAbove"`
	SendIntervalSec *float64  `json:"sendIntervalSec"`
}

// Apply overlays the patch onto base and returns the result. Present
// fields override, with two firmware quirks kept: an empty pumpMode and
// a non-positive sendIntervalSec leave the base value in place. The
// mode is lowercased on the way in.
func (p SettingsPatch) Apply(base Settings) Settings {
	out := base
	if p.PumpMode != nil && *p.PumpMode != "" {
		out.PumpMode = PumpMode(strings.ToLower(string(*p.PumpMode)))
	}
	if p.OverridePumpOn != nil {
		out.OverridePumpOn = *p.OverridePumpOn
	}
	if p.PumpOnBelow != nil {
		out.PumpOnBelow = *p.PumpOnBelow
	}
	if p.PumpOffAbove != nil {
		out.PumpOffAbove = *p.PumpOffAbove
	}
	if p.SendIntervalSec != nil && *p.SendIntervalSec > 0 {
		out.SendIntervalSec = *p.SendIntervalSec
	}
	return out
}

// IsZero reports whether the patch carries no fields at all.
func (p SettingsPatch) IsZero() bool {
	return p.PumpMode == nil && p.OverridePumpOn == nil && p.PumpOnBelow == nil &&
		p.PumpOffAbove == nil && p.SendIntervalSec == nil
}

// DecodeSettingsPatch parses a JSON object into a patch. A field of the
// wrong JSON type is skipped while the rest still applies; data that is
// not an object fails outright and must be dropped by the caller.
func DecodeSettingsPatch(data []byte) (SettingsPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return SettingsPatch{}, err
	}
	var p SettingsPatch
	decodeField(fields, "pumpMode", &p.PumpMode)
	decodeField(fields, "overridePumpOn", &p.OverridePumpOn)
	decodeField(fields, "pumpOnBelow", &p.PumpOnBelow)
	decodeField(fields, "pumpOffAbove", &p.PumpOffAbove)
	decodeField(fields, "sendIntervalSec", &p.SendIntervalSec)
	return p, nil
}

// decodeField fills dst from the named key, leaving it nil when the key
// is absent, null, or holds a value of the wrong type.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst **T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return
	}
	*dst = v
}
