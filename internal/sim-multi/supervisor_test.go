package sim_multi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/api"
	"github.com/KongGithubDev/MushIoT/internal/model"
)

// memStore is a concurrency-safe KeyStore for fleet tests.
type memStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memStore) Get(deviceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[deviceID], nil
}

func (s *memStore) Put(deviceID, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[deviceID] = apiKey
	return nil
}

// fleetBackend accepts any device id and records who reported.
type fleetBackend struct {
	mu       sync.Mutex
	readings map[string]int
	srv      *httptest.Server
}

func newFleetBackend(t *testing.T) *fleetBackend {
	b := &fleetBackend{readings: map[string]int{}}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/rotate-key"):
			json.NewEncoder(w).Encode(map[string]string{"apiKey": "fleet-key"})
		case strings.HasSuffix(r.URL.Path, "/settings"):
			io.WriteString(w, "{}")
		case strings.HasSuffix(r.URL.Path, "/ack"):
		case strings.HasSuffix(r.URL.Path, "/stream"):
			w.Header().Set("Content-Type", "text/event-stream")
		case r.URL.Path == "/api/readings":
			var rd model.Reading
			if err := json.NewDecoder(r.Body).Decode(&rd); err != nil {
				t.Errorf("bad reading body: %v", err)
				return
			}
			b.mu.Lock()
			b.readings[rd.DeviceID]++
			b.mu.Unlock()
		case r.URL.Path == "/api/ota/manifest":
			io.WriteString(w, "{}")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fleetBackend) devices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.readings))
	for id := range b.readings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSupervisorRunsFleet(t *testing.T) {
	b := newFleetBackend(t)
	sup := New(api.NewClient(b.srv.URL), Config{
		Count:    3,
		Prefix:   "esp32-t",
		Interval: 10 * time.Millisecond,
		Seed:     100,
		Keys:     &memStore{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	waitUntil(t, func() bool { return len(b.devices()) == 3 })

	want := []string{"esp32-t1", "esp32-t2", "esp32-t3"}
	got := b.devices()
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("reporting devices = %v, want %v", got, want)
	}

	waitUntil(t, func() bool {
		running := 0
		for _, st := range sup.Stats() {
			if st.Running {
				running++
			}
		}
		return running == 3
	})

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not join after cancel")
	}

	for _, st := range sup.Stats() {
		if st.Running {
			t.Errorf("device %s still marked running after Run returned", st.DeviceID)
		}
		if st.Readings == 0 {
			t.Errorf("device %s posted no readings", st.DeviceID)
		}
	}
}

func TestSupervisorStatsCoversFleet(t *testing.T) {
	b := newFleetBackend(t)
	sup := New(api.NewClient(b.srv.URL), Config{
		Count:    5,
		Prefix:   "esp32-x",
		Interval: time.Minute,
		Keys:     &memStore{},
	})

	stats := sup.Stats()
	if len(stats) != 5 {
		t.Fatalf("Stats() returned %d entries, want 5", len(stats))
	}
	for i, st := range stats {
		if st.Running {
			t.Errorf("device %d marked running before Run", i)
		}
	}
	if stats[4].DeviceID != "esp32-x5" {
		t.Errorf("last device id = %q, want %q", stats[4].DeviceID, "esp32-x5")
	}
}
