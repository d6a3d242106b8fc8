package sim_device

import "testing"

func TestRaw(t *testing.T) {
	tests := []struct {
		moisture int
		want     int
	}{
		{0, 3200},
		{100, 1400},
		{50, 2300},
		{42, 2444},
	}
	for _, tt := range tests {
		if got := Raw(tt.moisture); got != tt.want {
			t.Errorf("Raw(%d) = %d, want %d", tt.moisture, got, tt.want)
		}
	}
}

func TestSeededInitialMoisture(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		m := NewSeededEnvironment(seed).Moisture()
		if m < 35 || m > 60 {
			t.Errorf("seed %d: initial moisture = %d, want in [35,60]", seed, m)
		}
	}
}

func TestAdvanceStaysInBounds(t *testing.T) {
	env := NewSeededEnvironment(3)
	prev := env.Moisture()
	for i := 0; i < 500; i++ {
		m := env.Advance()
		if m < 0 || m > 100 {
			t.Fatalf("advance %d: moisture = %d, want in [0,100]", i, m)
		}
		if d := m - prev; d < -7 || d > 7 {
			t.Fatalf("advance %d: step %d too large (from %d to %d)", i, d, prev, m)
		}
		if env.Moisture() != m {
			t.Fatalf("Moisture() = %d after Advance returned %d", env.Moisture(), m)
		}
		prev = m
	}
}

func TestSeededRunsAreIdentical(t *testing.T) {
	a := NewSeededEnvironment(7)
	b := NewSeededEnvironment(7)
	if a.Moisture() != b.Moisture() {
		t.Fatalf("initial moisture differs: %d vs %d", a.Moisture(), b.Moisture())
	}
	for i := 0; i < 200; i++ {
		if ma, mb := a.Advance(), b.Advance(); ma != mb {
			t.Fatalf("advance %d: %d vs %d", i, ma, mb)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := NewSeededEnvironment(1)
	b := NewSeededEnvironment(2)
	for i := 0; i < 50; i++ {
		if a.Advance() != b.Advance() {
			return
		}
	}
	t.Error("seeds 1 and 2 produced identical 50-step runs")
}
