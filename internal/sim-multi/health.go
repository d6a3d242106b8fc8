package sim_multi

import (
	"encoding/json"
	"net/http"
)

type healthHandler struct {
	sup *Supervisor
}

// NewHealthHandler reports fleet liveness for a compose healthcheck.
func NewHealthHandler(s *Supervisor) http.Handler {
	return &healthHandler{sup: s}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status   string `json:"status"`
		Running  int    `json:"running"`
		Total    int    `json:"total"`
		Readings uint64 `json:"readings"`
		Acks     uint64 `json:"acks"`
		Errors   uint64 `json:"errors"`
	}
	var st status
	for _, s := range h.sup.Stats() {
		st.Total++
		if s.Running {
			st.Running++
		}
		st.Readings += s.Readings
		st.Acks += s.Acks
		st.Errors += s.Errors
	}

	switch {
	case st.Total > 0 && st.Running == st.Total:
		st.Status = "ok"
	case st.Running > 0:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}
