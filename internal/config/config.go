// Fleet configuration: vehicle roster, formation defaults, control tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"formationctl/internal/geometry"
)

// Vehicle describes one vehicle and the address of its transport link.
type Vehicle struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// Formation holds the initial formation geometry.
type Formation struct {
	Pattern  string        `yaml:"pattern"`
	SpacingM float64       `yaml:"spacing_m"`
	Center   geometry.Vec3 `yaml:"center"`
}

// Takeoff holds the altitude-success heuristic. The thresholds encode a
// noise-tolerance judgment call, so they are configuration rather than
// constants.
type Takeoff struct {
	TimeoutSeconds  float64 `yaml:"timeout_seconds"`
	SampleSeconds   float64 `yaml:"sample_seconds"`
	SuccessFraction float64 `yaml:"success_fraction"`
	StableFraction  float64 `yaml:"stable_fraction"`
	StableDeltaM    float64 `yaml:"stable_delta_m"`
	StableSamples   int     `yaml:"stable_samples"`
}

// Control holds control-loop and sequencing tuning.
type Control struct {
	TickSeconds            float64 `yaml:"tick_seconds"`
	CruiseSpeedMPS         float64 `yaml:"cruise_speed_mps"`
	MaxVelocityMPS         float64 `yaml:"max_velocity_mps"`
	ArrivalRadiusM         float64 `yaml:"arrival_radius_m"`
	CommandTimeoutSeconds  float64 `yaml:"command_timeout_seconds"`
	TakeoffAckSeconds      float64 `yaml:"takeoff_ack_seconds"`
	StepSettleSeconds      float64 `yaml:"step_settle_seconds"`
	TakeoffStaggerSeconds  float64 `yaml:"takeoff_stagger_seconds"`
	LandStaggerSeconds     float64 `yaml:"land_stagger_seconds"`
	FormationSettleSeconds float64 `yaml:"formation_settle_seconds"`
	ConnectTimeoutSeconds  float64 `yaml:"connect_timeout_seconds"`
	ConnectPollSeconds     float64 `yaml:"connect_poll_seconds"`
	HeartbeatStaleSeconds  float64 `yaml:"heartbeat_stale_seconds"`
	Takeoff                Takeoff `yaml:"takeoff"`
}

// FleetConfig is the root configuration.
type FleetConfig struct {
	Vehicles  []Vehicle `yaml:"vehicles"`
	Formation Formation `yaml:"formation"`
	Control   Control   `yaml:"control"`
}

// Load reads a YAML config, validates it against the CUE schema, and
// applies defaults for unset tuning values.
func Load(configPath, cueSchemaPath string) (*FleetConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if len(cfg.Vehicles) == 0 {
		return nil, fmt.Errorf("config %s: no vehicles defined", configPath)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued tuning fields with the stock values.
func (c *FleetConfig) ApplyDefaults() {
	if c.Formation.Pattern == "" {
		c.Formation.Pattern = "line"
	}
	if c.Formation.SpacingM == 0 {
		c.Formation.SpacingM = 5
	}
	if c.Formation.Center == (geometry.Vec3{}) {
		c.Formation.Center = geometry.Vec3{Z: 10}
	}
	ct := &c.Control
	def := func(f *float64, v float64) {
		if *f == 0 {
			*f = v
		}
	}
	def(&ct.TickSeconds, 0.1)
	def(&ct.CruiseSpeedMPS, 1.0)
	def(&ct.MaxVelocityMPS, 3.0)
	def(&ct.ArrivalRadiusM, 0.1)
	def(&ct.CommandTimeoutSeconds, 5)
	def(&ct.TakeoffAckSeconds, 10)
	def(&ct.StepSettleSeconds, 0.5)
	def(&ct.TakeoffStaggerSeconds, 1)
	def(&ct.LandStaggerSeconds, 2)
	def(&ct.FormationSettleSeconds, 10)
	def(&ct.ConnectTimeoutSeconds, 30)
	def(&ct.ConnectPollSeconds, 1)
	def(&ct.HeartbeatStaleSeconds, 3)
	tk := &ct.Takeoff
	def(&tk.TimeoutSeconds, 30)
	def(&tk.SampleSeconds, 1)
	def(&tk.SuccessFraction, 0.90)
	def(&tk.StableFraction, 0.85)
	def(&tk.StableDeltaM, 0.1)
	if tk.StableSamples == 0 {
		tk.StableSamples = 3
	}
}

// Duration helpers. YAML carries plain seconds; callers work in
// time.Duration.

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func (c Control) Tick() time.Duration            { return secs(c.TickSeconds) }
func (c Control) CommandTimeout() time.Duration  { return secs(c.CommandTimeoutSeconds) }
func (c Control) TakeoffAck() time.Duration      { return secs(c.TakeoffAckSeconds) }
func (c Control) StepSettle() time.Duration      { return secs(c.StepSettleSeconds) }
func (c Control) TakeoffStagger() time.Duration  { return secs(c.TakeoffStaggerSeconds) }
func (c Control) LandStagger() time.Duration     { return secs(c.LandStaggerSeconds) }
func (c Control) FormationSettle() time.Duration { return secs(c.FormationSettleSeconds) }
func (c Control) ConnectTimeout() time.Duration  { return secs(c.ConnectTimeoutSeconds) }
func (c Control) ConnectPoll() time.Duration     { return secs(c.ConnectPollSeconds) }
func (c Control) HeartbeatStale() time.Duration  { return secs(c.HeartbeatStaleSeconds) }

func (t Takeoff) Timeout() time.Duration { return secs(t.TimeoutSeconds) }
func (t Takeoff) Sample() time.Duration  { return secs(t.SampleSeconds) }
