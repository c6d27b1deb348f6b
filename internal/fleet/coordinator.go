// Package fleet coordinates multiple vehicle sessions: connection waits,
// arming, staggered takeoff and landing, and the fixed-rate control loop
// that keeps every vehicle on its formation slot.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"formationctl/internal/config"
	"formationctl/internal/formation"
	"formationctl/internal/geometry"
	"formationctl/internal/link"
	"formationctl/internal/logging"
	"formationctl/internal/telemetry"
	"formationctl/internal/vehicle"
)

// FlightWriter receives one row per vehicle per control tick.
type FlightWriter interface {
	Write(telemetry.FlightRow) error
}

// Optional: writers can also support batch mode.
type batchWriter interface {
	WriteBatch([]telemetry.FlightRow) error
}

// Status is the coordinator snapshot exposed to the console and admin API.
type Status struct {
	Active    bool          `json:"active"`
	Pattern   string        `json:"pattern"`
	Center    geometry.Vec3 `json:"center"`
	SpacingM  float64       `json:"spacing_m"`
	Vehicles  int           `json:"vehicles"`
	Connected int           `json:"connected"`
}

// VehicleStatus is a per-session snapshot.
type VehicleStatus struct {
	ID         string        `json:"id"`
	Connection string        `json:"connection"`
	Flight     string        `json:"flight"`
	Position   geometry.Vec3 `json:"position"`
	Target     geometry.Vec3 `json:"target"`
}

// Coordinator owns the ordered session list and the active formation spec.
// Session order fixes slot assignment: session i flies target i. Formation
// geometry is mutated only through the coordinator's own API.
type Coordinator struct {
	runID  string
	ctl    config.Control
	tun    vehicle.Tuning
	writer FlightWriter

	mu       sync.Mutex
	sessions []*vehicle.Session
	pattern  formation.Pattern
	center   geometry.Vec3
	spacing  float64
	active   bool

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// New builds a coordinator from config. The initial pattern name is
// validated here; an unknown name is a configuration error, not a runtime
// condition.
func New(cfg *config.FleetConfig, writer FlightWriter) (*Coordinator, error) {
	p, err := formation.ParsePattern(cfg.Formation.Pattern)
	if err != nil {
		return nil, err
	}
	ctl := cfg.Control
	return &Coordinator{
		runID:   uuid.New().String(),
		ctl:     ctl,
		tun:     tuningFrom(ctl),
		writer:  writer,
		pattern: p,
		center:  cfg.Formation.Center,
		spacing: cfg.Formation.SpacingM,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

func tuningFrom(ctl config.Control) vehicle.Tuning {
	return vehicle.Tuning{
		CommandTimeout:    ctl.CommandTimeout(),
		TakeoffAckTimeout: ctl.TakeoffAck(),
		StepSettle:        ctl.StepSettle(),
		ConnectPoll:       ctl.ConnectPoll(),
		HeartbeatStale:    ctl.HeartbeatStale(),
		MaxVelocity:       ctl.MaxVelocityMPS,
		ArrivalRadius:     ctl.ArrivalRadiusM,
		Takeoff: vehicle.TakeoffTuning{
			Timeout:         ctl.Takeoff.Timeout(),
			Sample:          ctl.Takeoff.Sample(),
			SuccessFraction: ctl.Takeoff.SuccessFraction,
			StableFraction:  ctl.Takeoff.StableFraction,
			StableDelta:     ctl.Takeoff.StableDeltaM,
			StableSamples:   ctl.Takeoff.StableSamples,
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// AddVehicle registers a session for the given link. Order of addition
// fixes the vehicle's formation slot. An empty id gets a generated one.
func (c *Coordinator) AddVehicle(ctx context.Context, id string, lk link.Link) *vehicle.Session {
	log := logging.FromContext(ctx)
	if id == "" {
		id = "vehicle-" + uuid.New().String()
	}
	s := vehicle.NewSession(id, lk, c.tun, log)
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	n := len(c.sessions)
	c.mu.Unlock()
	log.Info("vehicle added", "vehicle", id, "slot", n-1, "total", n)
	return s
}

func (c *Coordinator) snapshot() []*vehicle.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*vehicle.Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// ConnectAll opens every session's transport link.
func (c *Coordinator) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, s := range c.snapshot() {
		if err := s.Connect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AwaitAllConnected polls every session at the connect-poll interval until
// all report a heartbeat or the timeout elapses.
func (c *Coordinator) AwaitAllConnected(ctx context.Context, timeout time.Duration) error {
	log := logging.FromContext(ctx)
	sessions := c.snapshot()
	deadline := c.now().Add(timeout)
	for {
		connected := 0
		for _, s := range sessions {
			if s.ConnectionState() == vehicle.Connected {
				connected++
			}
		}
		if connected == len(sessions) {
			log.Info("all vehicles connected", "count", connected)
			return nil
		}
		if !c.now().Before(deadline) {
			return fmt.Errorf("connected %d/%d vehicles within %s: %w", connected, len(sessions), timeout, vehicle.ErrTimeout)
		}
		log.Info("waiting for connections", "connected", connected, "total", len(sessions))
		c.sleep(ctx, c.ctl.ConnectPoll())
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// ArmAll sets GUIDED mode and arms every session in slot order. A failure
// does not stop the remaining vehicles; the aggregate error names every
// vehicle that failed.
func (c *Coordinator) ArmAll(ctx context.Context) error {
	log := logging.FromContext(ctx)
	var errs []error
	for _, s := range c.snapshot() {
		if err := s.SetMode(ctx, "GUIDED"); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.Arm(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		log.Error("arm sequence incomplete", "failed", len(errs))
		return fmt.Errorf("arm all: %w", errors.Join(errs...))
	}
	log.Info("all vehicles armed")
	return nil
}

// TakeoffFormation takes every vehicle off in slot order with the takeoff
// stagger between successive commands. The first failure aborts the
// remaining vehicles. After the last success the coordinator waits the
// formation settle period before declaring the formation airborne.
func (c *Coordinator) TakeoffFormation(ctx context.Context, altitude float64) error {
	log := logging.FromContext(ctx)
	for i, s := range c.snapshot() {
		if i > 0 {
			// Stagger avoids prop-wash interaction and supply spikes;
			// a literal minimum delay, not a scheduling hint.
			c.sleep(ctx, c.ctl.TakeoffStagger())
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		log.Info("takeoff", "vehicle", s.ID(), "altitude_m", altitude)
		if err := s.Takeoff(ctx, altitude); err != nil {
			return fmt.Errorf("formation takeoff aborted at %s: %w", s.ID(), err)
		}
	}
	c.sleep(ctx, c.ctl.FormationSettle())
	log.Info("formation airborne", "altitude_m", altitude)
	return nil
}

// LandFormation lands every vehicle in slot order, best-effort, with the
// landing stagger between all but the last. Individual failures are logged
// and do not stop the sequence. The formation is deactivated.
func (c *Coordinator) LandFormation(ctx context.Context) {
	log := logging.FromContext(ctx)
	sessions := c.snapshot()
	for i, s := range sessions {
		log.Info("landing", "vehicle", s.ID())
		if err := s.Land(ctx); err != nil {
			log.Error("land failed", "vehicle", s.ID(), "err", err)
		}
		if i < len(sessions)-1 {
			c.sleep(ctx, c.ctl.LandStagger())
		}
	}
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	log.Info("formation landing complete")
}

// Start activates the control loop's slot tracking.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.active = true
	p := c.pattern
	c.mu.Unlock()
	logging.FromContext(ctx).Info("formation flying started", "pattern", p.String())
}

// Stop deactivates slot tracking and commands zero velocity to every
// session immediately, without waiting for the next tick. Safe to call
// repeatedly.
func (c *Coordinator) Stop(ctx context.Context) {
	log := logging.FromContext(ctx)
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	for _, s := range c.snapshot() {
		if err := s.Stop(); err != nil {
			log.Error("stop failed", "vehicle", s.ID(), "err", err)
		}
	}
	log.Info("formation flying stopped")
}

// SetPattern switches the active pattern; unknown names are rejected
// without touching the formation.
func (c *Coordinator) SetPattern(name string) error {
	p, err := formation.ParsePattern(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pattern = p
	c.mu.Unlock()
	return nil
}

// MoveFormationBy shifts the shared formation center. Takes effect on the
// next tick.
func (c *Coordinator) MoveFormationBy(dx, dy, dz float64) geometry.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = c.center.Add(geometry.Vec3{X: dx, Y: dy, Z: dz})
	return c.center
}

// Status reports the formation snapshot.
func (c *Coordinator) Status() Status {
	sessions := c.snapshot()
	connected := 0
	for _, s := range sessions {
		if s.ConnectionState() == vehicle.Connected {
			connected++
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Active:    c.active,
		Pattern:   c.pattern.String(),
		Center:    c.center,
		SpacingM:  c.spacing,
		Vehicles:  len(sessions),
		Connected: connected,
	}
}

// Vehicles reports per-session snapshots in slot order.
func (c *Coordinator) Vehicles() []VehicleStatus {
	sessions := c.snapshot()
	out := make([]VehicleStatus, len(sessions))
	for i, s := range sessions {
		out[i] = VehicleStatus{
			ID:         s.ID(),
			Connection: s.ConnectionState().String(),
			Flight:     s.FlightState().String(),
			Position:   s.Position(),
			Target:     s.Target(),
		}
	}
	return out
}

// Shutdown is the mandatory finalizer: stop tracking, land everything,
// release links. Best-effort; landing failures are logged, not re-raised.
func (c *Coordinator) Shutdown(ctx context.Context) {
	log := logging.FromContext(ctx)
	c.Stop(ctx)
	c.LandFormation(ctx)
	for _, s := range c.snapshot() {
		if err := s.Close(); err != nil {
			log.Error("link close failed", "vehicle", s.ID(), "err", err)
		}
	}
}
