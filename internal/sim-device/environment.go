package sim_device

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Raw ADC endpoints of the moisture probe: ~1400 soaked, ~3200 dry.
const (
	rawWet = 1400
	rawDry = 3200
)

// sinePeriodSec drives the slow component of the drift, one full swing
// every few minutes of clock time.
const sinePeriodSec = 60.0

// environment is what the control loop needs from the soil model.
type environment interface {
	Moisture() int
	Advance() int
}

// Environment simulates the soil around one probe. Moisture moves by a
// bounded random walk plus a slow sine of the clock, clamped to
// [0,100]. The state is mutex'd so the loop and any health snapshot
// can read it concurrently.
type Environment struct {
	mu       sync.Mutex
	moisture int
	rng      *rand.Rand
	now      func() time.Time // called only from Advance, under mu
}

// NewEnvironment seeds a non-deterministic environment starting in the
// 35..60 band, like a pot watered a while ago.
func NewEnvironment() *Environment {
	return newEnvironment(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewSeededEnvironment builds a fully reproducible environment: a fixed
// rng stream and a synthetic clock stepping 15s per advance from the
// Unix epoch. Two runs with the same seed produce identical moisture
// sequences tick for tick.
func NewSeededEnvironment(seed int64) *Environment {
	next := time.Unix(0, 0).UTC()
	now := func() time.Time {
		t := next
		next = next.Add(15 * time.Second)
		return t
	}
	return newEnvironment(rand.New(rand.NewSource(seed)), now)
}

func newEnvironment(rng *rand.Rand, now func() time.Time) *Environment {
	return &Environment{
		moisture: 35 + rng.Intn(26),
		rng:      rng,
		now:      now,
	}
}

// Moisture returns the current value without advancing the model.
func (e *Environment) Moisture() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moisture
}

// Advance moves the model one tick and returns the new moisture.
func (e *Environment) Advance() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := float64(e.now().UnixNano()) / float64(time.Second)
	drift := e.rng.Intn(5) - 2 // randint in [-2,+2]
	drift += int(5 * math.Sin(t/sinePeriodSec))

	e.moisture = clamp(e.moisture+drift, 0, 100)
	return e.moisture
}

// Raw maps moisture onto the probe's ADC range: wetter soil reads
// lower. Reporting only, never fed back into control.
func Raw(moisture int) int {
	return rawWet + (100-moisture)*(rawDry-rawWet)/100
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
