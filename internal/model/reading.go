package model

// ReadingPayload mirrors the free-form payload an ESP32 attaches to its
// reports: the raw ADC sample plus the pump state at send time.
type ReadingPayload struct {
	Raw    int    `json:"raw"`
	PumpOn bool   `json:"pumpOn"`
	Note   string `json:"note"`
}

// Reading is one moisture report as posted to /api/readings.
type Reading struct {
	DeviceID string         `json:"deviceId"`
	Moisture int            `json:"moisture"`
	Payload  ReadingPayload `json:"payload"`
}

// Ack confirms the device's pump state and mode to the backend.
type Ack struct {
	PumpOn   bool     `json:"pumpOn"`
	PumpMode PumpMode `json:"pumpMode"`
	Note     string   `json:"note"`
}

// Ack notes tell the backend what triggered the confirmation.
const (
	NotePolicy   = "sim"              // policy-driven state change
	NoteCommand  = "cmd"              // pushed command patch applied
	NoteSettings = "settings applied" // one-time settings confirmation
)
