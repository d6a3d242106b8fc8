package sim_device

import "github.com/KongGithubDev/MushIoT/internal/model"

// Decide computes the next pump state from the active settings, the
// current moisture and the present pump state.
//
// Manual mode is an unconditional override. Auto mode is a hysteresis
// band: switch on strictly below PumpOnBelow, switch off strictly above
// PumpOffAbove, hold inside the band. A degenerate band
// (PumpOnBelow > PumpOffAbove) is accepted as-is and will chatter.
func Decide(s model.Settings, moisture int, pumpOn bool) bool {
	if s.PumpMode.Manual() {
		return s.OverridePumpOn
	}
	if !pumpOn && moisture < s.PumpOnBelow {
		return true
	}
	if pumpOn && moisture > s.PumpOffAbove {
		return false
	}
	return pumpOn
}
