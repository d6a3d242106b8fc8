package model

import (
	"testing"
	"time"
)

func mode(m PumpMode) *PumpMode { return &m }

func boolp(b bool) *bool { return &b }

func intp(i int) *int { return &i }

func floatp(f float64) *float64 { return &f }

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings(60 * time.Second)
	if s.PumpMode != ModeAuto {
		t.Errorf("PumpMode = %q, want auto", s.PumpMode)
	}
	if s.OverridePumpOn {
		t.Error("OverridePumpOn should default to false")
	}
	if s.PumpOnBelow != 35 || s.PumpOffAbove != 45 {
		t.Errorf("thresholds = (%d, %d), want (35, 45)", s.PumpOnBelow, s.PumpOffAbove)
	}
	if s.SendInterval() != 60*time.Second {
		t.Errorf("SendInterval = %v, want 60s", s.SendInterval())
	}
}

func TestPumpModeManual(t *testing.T) {
	if ModeAuto.Manual() {
		t.Error("auto should not be manual")
	}
	if !ModeManual.Manual() {
		t.Error("manual should be manual")
	}
	// unrecognized modes behave as auto
	if PumpMode("boost").Manual() {
		t.Error("unknown mode should not be manual")
	}
}

func TestPatchApply(t *testing.T) {
	base := DefaultSettings(60 * time.Second)

	tests := []struct {
		name  string
		patch SettingsPatch
		want  Settings
	}{
		{
			name:  "empty patch keeps base",
			patch: SettingsPatch{},
			want:  base,
		},
		{
			name:  "mode override is lowercased",
			patch: SettingsPatch{PumpMode: mode("MANUAL")},
			want:  Settings{PumpMode: ModeManual, PumpOnBelow: 35, PumpOffAbove: 45, SendIntervalSec: 60},
		},
		{
			name:  "empty mode keeps base",
			patch: SettingsPatch{PumpMode: mode("")},
			want:  base,
		},
		{
			name:  "override pump on",
			patch: SettingsPatch{OverridePumpOn: boolp(true)},
			want:  Settings{PumpMode: ModeAuto, OverridePumpOn: true, PumpOnBelow: 35, PumpOffAbove: 45, SendIntervalSec: 60},
		},
		{
			name:  "zero threshold is applied",
			patch: SettingsPatch{PumpOnBelow: intp(0)},
			want:  Settings{PumpMode: ModeAuto, PumpOnBelow: 0, PumpOffAbove: 45, SendIntervalSec: 60},
		},
		{
			name:  "both thresholds",
			patch: SettingsPatch{PumpOnBelow: intp(20), PumpOffAbove: intp(80)},
			want:  Settings{PumpMode: ModeAuto, PumpOnBelow: 20, PumpOffAbove: 80, SendIntervalSec: 60},
		},
		{
			name:  "interval override",
			patch: SettingsPatch{SendIntervalSec: floatp(5)},
			want:  Settings{PumpMode: ModeAuto, PumpOnBelow: 35, PumpOffAbove: 45, SendIntervalSec: 5},
		},
		{
			name:  "zero interval keeps base",
			patch: SettingsPatch{SendIntervalSec: floatp(0)},
			want:  base,
		},
		{
			name:  "negative interval keeps base",
			patch: SettingsPatch{SendIntervalSec: floatp(-3)},
			want:  base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.patch.Apply(base)
			if got != tt.want {
				t.Errorf("Apply = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPatchApplyDoesNotMutateBase(t *testing.T) {
	base := DefaultSettings(60 * time.Second)
	p := SettingsPatch{PumpOnBelow: intp(10)}
	_ = p.Apply(base)
	if base.PumpOnBelow != 35 {
		t.Errorf("base mutated: PumpOnBelow = %d", base.PumpOnBelow)
	}
}

func TestDecodeSettingsPatch(t *testing.T) {
	t.Run("full object", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{"pumpMode":"manual","overridePumpOn":true,"pumpOnBelow":20,"pumpOffAbove":70,"sendIntervalSec":5}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.PumpMode == nil || *p.PumpMode != "manual" {
			t.Errorf("PumpMode = %v", p.PumpMode)
		}
		if p.OverridePumpOn == nil || !*p.OverridePumpOn {
			t.Errorf("OverridePumpOn = %v", p.OverridePumpOn)
		}
		if p.PumpOnBelow == nil || *p.PumpOnBelow != 20 {
			t.Errorf("PumpOnBelow = %v", p.PumpOnBelow)
		}
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{"pumpOnBelow":25,"color":"green"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.PumpOnBelow == nil || *p.PumpOnBelow != 25 {
			t.Errorf("PumpOnBelow = %v", p.PumpOnBelow)
		}
	})

	t.Run("bad field type is skipped, rest kept", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{"pumpOnBelow":"soon","pumpOffAbove":70}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.PumpOnBelow != nil {
			t.Errorf("PumpOnBelow should be skipped, got %v", *p.PumpOnBelow)
		}
		if p.PumpOffAbove == nil || *p.PumpOffAbove != 70 {
			t.Errorf("PumpOffAbove = %v", p.PumpOffAbove)
		}
	})

	t.Run("every bad field is skipped", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{"pumpOnBelow":"soon","pumpOffAbove":"later","sendIntervalSec":5}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.PumpOnBelow != nil {
			t.Errorf("PumpOnBelow should be skipped, got %v", *p.PumpOnBelow)
		}
		if p.PumpOffAbove != nil {
			t.Errorf("PumpOffAbove should be skipped, got %v", *p.PumpOffAbove)
		}
		if p.SendIntervalSec == nil || *p.SendIntervalSec != 5 {
			t.Errorf("SendIntervalSec = %v", p.SendIntervalSec)
		}
	})

	t.Run("null field is skipped", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{"pumpOnBelow":null,"pumpOffAbove":70}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.PumpOnBelow != nil {
			t.Errorf("PumpOnBelow should be skipped, got %v", *p.PumpOnBelow)
		}
		if p.PumpOffAbove == nil || *p.PumpOffAbove != 70 {
			t.Errorf("PumpOffAbove = %v", p.PumpOffAbove)
		}
	})

	t.Run("non-object fails", func(t *testing.T) {
		if _, err := DecodeSettingsPatch([]byte(`[1,2]`)); err == nil {
			t.Error("array should fail")
		}
		if _, err := DecodeSettingsPatch([]byte(`"patch"`)); err == nil {
			t.Error("string should fail")
		}
		if _, err := DecodeSettingsPatch([]byte(`not json`)); err == nil {
			t.Error("garbage should fail")
		}
	})

	t.Run("empty object is zero patch", func(t *testing.T) {
		p, err := DecodeSettingsPatch([]byte(`{}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !p.IsZero() {
			t.Errorf("patch not zero: %+v", p)
		}
	})
}
