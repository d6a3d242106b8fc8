// Package metrics exposes fleet counters and gauges for scraping.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KongGithubDev/MushIoT/internal/model"
)

var (
	readingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mushiot",
		Name:      "readings_total",
		Help:      "Readings accepted by the backend, per device.",
	}, []string{"device"})

	acksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mushiot",
		Name:      "acks_total",
		Help:      "State acks accepted by the backend, per device and note.",
	}, []string{"device", "note"})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mushiot",
		Name:      "request_errors_total",
		Help:      "Failed backend calls, per device and call.",
	}, []string{"device", "call"})

	moisture = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mushiot",
		Name:      "soil_moisture",
		Help:      "Last simulated moisture percentage, per device.",
	}, []string{"device"})

	pumpOn = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mushiot",
		Name:      "pump_on",
		Help:      "Pump state after the last tick, 1 when running.",
	}, []string{"device"})
)

// ReadingPosted records an accepted reading and refreshes the gauges.
func ReadingPosted(r model.Reading) {
	readingsTotal.WithLabelValues(r.DeviceID).Inc()
	moisture.WithLabelValues(r.DeviceID).Set(float64(r.Moisture))
	if r.Payload.PumpOn {
		pumpOn.WithLabelValues(r.DeviceID).Set(1)
	} else {
		pumpOn.WithLabelValues(r.DeviceID).Set(0)
	}
}

// AckPosted records an accepted ack.
func AckPosted(device, note string) {
	acksTotal.WithLabelValues(device, note).Inc()
}

// RequestFailed records a failed backend call such as "settings",
// "reading" or "ack".
func RequestFailed(device, call string) {
	requestErrors.WithLabelValues(device, call).Inc()
}

// Handler returns the scrape endpoint for mounting on an existing mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
