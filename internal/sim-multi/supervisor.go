// Package sim_multi runs a fleet of simulated devices inside one
// process, one goroutine per device, with a shared backend client and
// key store.
package sim_multi

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/model"
	sim_device "github.com/KongGithubDev/MushIoT/internal/sim-device"
)

// startStagger spaces device starts so a fresh fleet does not slam the
// enrollment endpoint all at once.
const startStagger = 300 * time.Millisecond

// Config describes the fleet.
type Config struct {
	Count        int
	Prefix       string // device ids are Prefix + 1..Count
	EnrollSecret string
	Interval     time.Duration
	Seed         int64 // base seed, device i runs with Seed+i; 0 disables
	Keys         sim_device.KeyStore
	Recorders    []sim_device.Recorder
	SummaryEvery time.Duration // 0 disables the periodic summary line
}

// Supervisor owns the fleet and its lifecycle.
type Supervisor struct {
	cfg  Config
	sims []*sim_device.Simulator
}

func New(client *api.Client, cfg Config) *Supervisor {
	sims := make([]*sim_device.Simulator, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		var seed int64
		if cfg.Seed != 0 {
			seed = cfg.Seed + int64(i)
		}
		sims = append(sims, sim_device.New(client, sim_device.Config{
			Device:       model.Device{ID: fmt.Sprintf("%s%d", cfg.Prefix, i+1)},
			Keys:         cfg.Keys,
			EnrollSecret: cfg.EnrollSecret,
			Interval:     cfg.Interval,
			Seed:         seed,
			Recorders:    cfg.Recorders,
		}))
	}
	return &Supervisor{cfg: cfg, sims: sims}
}

// Run starts every device with a short stagger and blocks until all
// loops have returned after ctx is cancelled. A device that fails to
// enroll is logged and the rest of the fleet keeps running.
func (s *Supervisor) Run(ctx context.Context) {
	log.Printf("fleet: starting %d devices prefix=%s", len(s.sims), s.cfg.Prefix)

	var wg sync.WaitGroup
	for _, sim := range s.sims {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(sim *sim_device.Simulator) {
			defer wg.Done()
			if err := sim.Run(ctx); err != nil {
				log.Printf("fleet: %v", err)
			}
		}(sim)

		select {
		case <-ctx.Done():
		case <-time.After(startStagger):
		}
	}

	if s.cfg.SummaryEvery > 0 {
		go s.summaryLoop(ctx)
	}

	wg.Wait()
	log.Printf("fleet: all devices stopped")
}

func (s *Supervisor) summaryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SummaryEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logSummary()
		}
	}
}

func (s *Supervisor) logSummary() {
	var readings, acks, errs uint64
	running := 0
	for _, st := range s.Stats() {
		readings += st.Readings
		acks += st.Acks
		errs += st.Errors
		if st.Running {
			running++
		}
	}
	log.Printf("fleet: running=%d/%d readings=%d acks=%d errors=%d",
		running, len(s.sims), readings, acks, errs)
}

// Stats snapshots every device's counters.
func (s *Supervisor) Stats() []sim_device.Stats {
	out := make([]sim_device.Stats, 0, len(s.sims))
	for _, sim := range s.sims {
		out = append(out, sim.Stats())
	}
	return out
}
