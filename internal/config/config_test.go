package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
vehicles:
  - id: leader
    address: sim://leader
  - id: drone-1
    address: sim://drone-1
formation:
  pattern: triangle
  spacing_m: 6
  center:
    x: 0
    y: 0
    z: 15
control:
  tick_seconds: 0.1
  cruise_speed_mps: 1.5
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Vehicles) != 2 {
		t.Fatalf("vehicles = %d, want 2", len(cfg.Vehicles))
	}
	if cfg.Formation.Pattern != "triangle" || cfg.Formation.SpacingM != 6 {
		t.Errorf("formation = %+v, explicit values must survive defaults", cfg.Formation)
	}
	if cfg.Control.CruiseSpeedMPS != 1.5 {
		t.Errorf("cruise speed = %f, want explicit 1.5", cfg.Control.CruiseSpeedMPS)
	}
	// Unset fields take the stock values.
	if cfg.Control.MaxVelocityMPS != 3.0 {
		t.Errorf("max velocity = %f, want default 3.0", cfg.Control.MaxVelocityMPS)
	}
	if cfg.Control.Takeoff.SuccessFraction != 0.90 {
		t.Errorf("success fraction = %f, want default 0.90", cfg.Control.Takeoff.SuccessFraction)
	}
	if cfg.Control.Takeoff.StableSamples != 3 {
		t.Errorf("stable samples = %d, want default 3", cfg.Control.Takeoff.StableSamples)
	}
}

func TestLoadRejectsEmptyRoster(t *testing.T) {
	if _, err := Load(writeTemp(t, "vehicles: []\n"), ""); err == nil {
		t.Fatal("expected error for empty vehicle roster")
	}
}

func TestDurationHelpers(t *testing.T) {
	ct := Control{TickSeconds: 0.1, LandStaggerSeconds: 2}
	if got := ct.Tick(); got != 100*time.Millisecond {
		t.Errorf("Tick() = %s, want 100ms", got)
	}
	if got := ct.LandStagger(); got != 2*time.Second {
		t.Errorf("LandStagger() = %s, want 2s", got)
	}
}

func TestValidateWithCueAcceptsValidConfig(t *testing.T) {
	err := ValidateWithCue(writeTemp(t, validYAML), "../../schemas/fleet.cue")
	if err != nil {
		t.Fatalf("ValidateWithCue: %v", err)
	}
}

func TestValidateWithCueRejectsBadPattern(t *testing.T) {
	bad := `
vehicles:
  - id: leader
    address: sim://leader
formation:
  pattern: blob
`
	if err := ValidateWithCue(writeTemp(t, bad), "../../schemas/fleet.cue"); err == nil {
		t.Fatal("expected schema rejection for unknown pattern")
	}
}

func TestValidateWithCueRejectsEmptyID(t *testing.T) {
	bad := `
vehicles:
  - id: ""
    address: sim://x
`
	if err := ValidateWithCue(writeTemp(t, bad), "../../schemas/fleet.cue"); err == nil {
		t.Fatal("expected schema rejection for empty vehicle id")
	}
}
