// Package sim_device runs one simulated irrigation device against the
// backend: enroll, poll settings, react to pushed commands, drive the
// pump by hysteresis and report readings.
package sim_device

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/metrics"
	"github.com/KongGithubDev/MushIoT/internal/model"
	"github.com/KongGithubDev/MushIoT/pkg/mailbox"
)

// otaPeriod spaces manifest polls. A poll fires whenever the clock
// crosses into a new period, not a fixed delay after the last one.
const otaPeriod = 10 * time.Minute

// Recorder mirrors accepted readings to a side channel such as an MQTT
// broker or InfluxDB. Record must not block the tick for long.
type Recorder interface {
	Record(model.Reading)
}

// Config carries everything one device needs to run.
type Config struct {
	Device       model.Device
	Keys         KeyStore
	EnrollSecret string
	Interval     time.Duration // fallback send interval
	Seed         int64         // 0 means non-deterministic
	Recorders    []Recorder
}

// Simulator is one device's control loop plus its SSE listener.
type Simulator struct {
	cfg     Config
	client  *api.Client
	env     environment
	pending *mailbox.Mailbox[model.SettingsPatch]
	wake    *mailbox.Signal
	now     func() time.Time

	readings atomic.Uint64
	acks     atomic.Uint64
	errs     atomic.Uint64
	running  atomic.Bool
}

func New(client *api.Client, cfg Config) *Simulator {
	var env environment
	if cfg.Seed != 0 {
		env = NewSeededEnvironment(cfg.Seed)
	} else {
		env = NewEnvironment()
	}
	return &Simulator{
		cfg:     cfg,
		client:  client,
		env:     env,
		pending: &mailbox.Mailbox[model.SettingsPatch]{},
		wake:    mailbox.NewSignal(),
		now:     time.Now,
	}
}

// ackState is the (pump, mode) pair last confirmed to the backend.
type ackState struct {
	pumpOn bool
	mode   model.PumpMode
}

type loopState struct {
	settings      model.Settings
	pumpOn        bool
	settingsAcked bool
	lastAck       ackState
	acked         bool
	lastOTA       time.Time
}

// Run drives the device until ctx is cancelled. It enrolls first when
// the config carries no API key, then ticks at the configured interval
// with pushed commands cutting the sleep short.
func (s *Simulator) Run(ctx context.Context) error {
	dev := s.cfg.Device
	if dev.APIKey == "" {
		key, err := EnsureAPIKey(ctx, s.client, s.cfg.Keys, dev.ID, s.cfg.EnrollSecret)
		if err != nil {
			return err
		}
		dev.APIKey = key
	}

	s.running.Store(true)
	defer s.running.Store(false)

	go NewListener(s.client, dev, s.pending, s.wake).Listen(ctx)

	log.Printf("sim: device=%s interval=%s base=%s", dev.ID, s.cfg.Interval, s.client.Base())

	st := &loopState{settings: model.DefaultSettings(s.cfg.Interval)}
	for {
		if ctx.Err() != nil {
			log.Printf("sim: %s stopped", dev.ID)
			return nil
		}
		s.tick(ctx, dev, st)
		if !s.sleep(ctx, st.settings.SendInterval()) {
			log.Printf("sim: %s stopped", dev.ID)
			return nil
		}
	}
}

// tick runs one cycle: refresh settings, drain a pushed command, step
// the environment, decide the pump, confirm state changes and report.
func (s *Simulator) tick(ctx context.Context, dev model.Device, st *loopState) {
	fetched := false
	patch, err := s.client.GetSettings(ctx, dev.ID, dev.APIKey)
	if err != nil {
		s.errs.Add(1)
		metrics.RequestFailed(dev.ID, "settings")
		log.Printf("sim: %s settings: %v", dev.ID, err)
	} else {
		// the backend response is authoritative, rebuild from defaults
		st.settings = patch.Apply(model.DefaultSettings(s.cfg.Interval))
		fetched = true
	}

	if cmd, ok := s.pending.Take(); ok {
		st.settings = cmd.Apply(st.settings)
		st.pumpOn = Decide(st.settings, s.env.Moisture(), st.pumpOn)
		s.ack(ctx, dev, st, model.NoteCommand)
	}

	if fetched && !st.settingsAcked {
		st.settingsAcked = true
		s.ack(ctx, dev, st, model.NoteSettings)
	}

	moisture := s.env.Advance()
	st.pumpOn = Decide(st.settings, moisture, st.pumpOn)

	if !st.acked || st.lastAck != (ackState{pumpOn: st.pumpOn, mode: st.settings.PumpMode}) {
		s.ack(ctx, dev, st, model.NotePolicy)
	}

	reading := model.Reading{
		DeviceID: dev.ID,
		Moisture: moisture,
		Payload: model.ReadingPayload{
			Raw:    Raw(moisture),
			PumpOn: st.pumpOn,
			Note:   model.NotePolicy,
		},
	}
	if err := s.client.PostReading(ctx, dev.APIKey, reading); err != nil {
		s.errs.Add(1)
		metrics.RequestFailed(dev.ID, "reading")
		log.Printf("sim: %s reading: %v", dev.ID, err)
	} else {
		s.readings.Add(1)
		metrics.ReadingPosted(reading)
		log.Printf("sim: %s reading moisture=%d raw=%d pump=%t", dev.ID, moisture, reading.Payload.Raw, st.pumpOn)
		for _, r := range s.cfg.Recorders {
			r.Record(reading)
		}
	}

	s.maybeCheckOTA(ctx, st)
}

// ack confirms the current (pump, mode) pair. The pair is recorded only
// on success so a failed ack is retried by the change check next tick.
func (s *Simulator) ack(ctx context.Context, dev model.Device, st *loopState, note string) {
	a := model.Ack{PumpOn: st.pumpOn, PumpMode: st.settings.PumpMode, Note: note}
	if err := s.client.PostAck(ctx, dev.ID, dev.APIKey, a); err != nil {
		s.errs.Add(1)
		metrics.RequestFailed(dev.ID, "ack")
		log.Printf("sim: %s ack: %v", dev.ID, err)
		return
	}
	s.acks.Add(1)
	metrics.AckPosted(dev.ID, note)
	log.Printf("sim: %s ack pump=%t mode=%s note=%q", dev.ID, st.pumpOn, st.settings.PumpMode, note)
	st.lastAck = ackState{pumpOn: st.pumpOn, mode: st.settings.PumpMode}
	st.acked = true
}

func (s *Simulator) maybeCheckOTA(ctx context.Context, st *loopState) {
	now := s.now()
	if !st.lastOTA.IsZero() && now.Truncate(otaPeriod).Equal(st.lastOTA.Truncate(otaPeriod)) {
		return
	}
	st.lastOTA = now

	m, err := s.client.GetManifest(ctx)
	if err != nil {
		log.Printf("ota: %v", err)
		return
	}
	if m.Available() {
		log.Printf("ota: available version=%s url=%s", m.Version, m.URL)
	}
}

// sleep waits out one interval. It returns early when the listener
// raises the wake signal and false when ctx ended the run.
func (s *Simulator) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.wake.Wait():
		log.Printf("sim: %s woken early", s.cfg.Device.ID)
		return true
	case <-t.C:
		return true
	}
}

// Stats is a point-in-time snapshot of one simulator's counters.
type Stats struct {
	DeviceID string
	Readings uint64
	Acks     uint64
	Errors   uint64
	Running  bool
}

func (s *Simulator) Stats() Stats {
	return Stats{
		DeviceID: s.cfg.Device.ID,
		Readings: s.readings.Load(),
		Acks:     s.acks.Load(),
		Errors:   s.errs.Load(),
		Running:  s.running.Load(),
	}
}
