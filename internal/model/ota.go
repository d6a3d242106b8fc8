package model

// Manifest describes the firmware build advertised for OTA updates.
type Manifest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Available reports whether the manifest actually advertises a build.
func (m Manifest) Available() bool { return m.Version != "" && m.URL != "" }
