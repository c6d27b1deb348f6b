// Package vehicle owns the per-vehicle connection and flight lifecycle:
// state driven by telemetry events in, commands and setpoints out.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"formationctl/internal/geometry"
	"formationctl/internal/link"
)

// ConnState tracks link liveness, driven solely by heartbeat presence.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (c ConnState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// FlightState is the strict forward lifecycle machine. Only
// Landing -> Grounded closes the cycle.
type FlightState int

const (
	Grounded FlightState = iota
	ArmRequested
	Armed
	TakingOff
	Airborne
	Landing
)

func (f FlightState) String() string {
	switch f {
	case ArmRequested:
		return "arm_requested"
	case Armed:
		return "armed"
	case TakingOff:
		return "taking_off"
	case Airborne:
		return "airborne"
	case Landing:
		return "landing"
	default:
		return "grounded"
	}
}

// TakeoffTuning holds the altitude-success heuristic. Success is either
// reaching SuccessFraction of the target, or the altitude holding within
// StableDelta for StableSamples consecutive samples at no less than
// StableFraction of the target.
type TakeoffTuning struct {
	Timeout         time.Duration
	Sample          time.Duration
	SuccessFraction float64
	StableFraction  float64
	StableDelta     float64
	StableSamples   int
}

// Tuning collects the session's timing and velocity bounds.
type Tuning struct {
	CommandTimeout    time.Duration // arm / set-mode ack bound
	TakeoffAckTimeout time.Duration
	StepSettle        time.Duration // pause between mode, arm, takeoff
	ConnectPoll       time.Duration
	HeartbeatStale    time.Duration // heartbeat silence treated as link loss
	MaxVelocity       float64       // per-axis clamp, m/s
	ArrivalRadius     float64       // meters
	Takeoff           TakeoffTuning
}

// DefaultTuning returns the stock bounds.
func DefaultTuning() Tuning {
	return Tuning{
		CommandTimeout:    5 * time.Second,
		TakeoffAckTimeout: 10 * time.Second,
		StepSettle:        500 * time.Millisecond,
		ConnectPoll:       time.Second,
		HeartbeatStale:    3 * time.Second,
		MaxVelocity:       3.0,
		ArrivalRadius:     0.1,
		Takeoff: TakeoffTuning{
			Timeout:         30 * time.Second,
			Sample:          time.Second,
			SuccessFraction: 0.90,
			StableFraction:  0.85,
			StableDelta:     0.1,
			StableSamples:   3,
		},
	}
}

// modeCodes maps symbolic flight modes to the transport encoding.
var modeCodes = map[string]float64{
	"STABILIZE": link.ModeStabilize,
	"GUIDED":    link.ModeGuided,
	"LOITER":    link.ModeLoiter,
	"RTL":       link.ModeRTL,
	"LAND":      link.ModeLand,
}

// Session owns one vehicle's connection state, flight state, and position
// estimate. Telemetry callbacks and the control loop are the only writers
// of its mutable fields; both go through the session mutex.
type Session struct {
	id   string
	link link.Link
	disp *Dispatcher
	tun  Tuning
	log  *slog.Logger

	sleep func(context.Context, time.Duration)

	mu            sync.Mutex
	conn          ConnState
	flight        FlightState
	pos           geometry.Vec3
	target        geometry.Vec3
	relAlt        float64
	armed         bool
	lastHeartbeat time.Time
}

// NewSession wires a session to its link. The session consumes the link's
// heartbeat, position, altitude, and ack streams.
func NewSession(id string, l link.Link, tun Tuning, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:    id,
		link:  l,
		disp:  NewDispatcher(l),
		tun:   tun,
		log:   logger.With("vehicle", id),
		sleep: sleepCtx,
	}
	l.OnHeartbeat(s.handleHeartbeat)
	l.OnPosition(s.handlePosition)
	l.OnRelativeAltitude(s.handleRelAlt)
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *Session) handleHeartbeat(hb link.Heartbeat) {
	s.mu.Lock()
	wasConn := s.conn
	s.lastHeartbeat = time.Now()
	s.armed = hb.Armed
	s.conn = Connected
	if s.flight == Landing && !hb.Armed {
		s.flight = Grounded
	}
	s.mu.Unlock()
	if wasConn != Connected {
		s.log.Info("heartbeat acquired")
	}
}

func (s *Session) handlePosition(p geometry.Vec3) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

func (s *Session) handleRelAlt(a float64) {
	s.mu.Lock()
	s.relAlt = a
	s.mu.Unlock()
}

// ID returns the stable vehicle identifier.
func (s *Session) ID() string { return s.id }

// ConnectionState reports link liveness. A heartbeat older than the
// staleness bound counts as link loss; flight state is kept as last-known.
func (s *Session) ConnectionState() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == Connected && time.Since(s.lastHeartbeat) > s.tun.HeartbeatStale {
		s.conn = Disconnected
		s.log.Warn("heartbeat lost")
	}
	return s.conn
}

// FlightState returns the current lifecycle state.
func (s *Session) FlightState() FlightState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight
}

// Position returns the last telemetry position.
func (s *Session) Position() geometry.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Target returns the last assigned formation target.
func (s *Session) Target() geometry.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// RelativeAltitude returns the last relative-altitude sample in meters.
func (s *Session) RelativeAltitude() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relAlt
}

// Connect opens the transport link. Reconnection is the link's business.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.conn = Connecting
	s.mu.Unlock()
	if err := s.link.Connect(ctx); err != nil {
		s.mu.Lock()
		s.conn = Disconnected
		s.mu.Unlock()
		return fmt.Errorf("connect %s: %w", s.id, err)
	}
	return nil
}

// Close releases the transport link.
func (s *Session) Close() error { return s.link.Close() }

// AwaitHeartbeat blocks until the first heartbeat arrives or the timeout
// elapses.
func (s *Session) AwaitHeartbeat(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ConnectionState() == Connected {
			return nil
		}
		s.sleep(ctx, s.tun.ConnectPoll)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("no heartbeat from %s within %s: %w", s.id, timeout, ErrTimeout)
}

// issueRetryOnce re-issues a timed-out command exactly once before
// surfacing the failure.
func (s *Session) issueRetryOnce(ctx context.Context, kind link.CommandKind, params map[string]float64, timeout time.Duration) error {
	_, err := s.disp.Issue(ctx, kind, params, timeout)
	if errors.Is(err, ErrTimeout) {
		s.log.Warn("command timed out, retrying once", "kind", string(kind))
		_, err = s.disp.Issue(ctx, kind, params, timeout)
	}
	return err
}

// SetMode requests a symbolic flight mode. Unrecognized names fail fast
// without a transport send.
func (s *Session) SetMode(ctx context.Context, mode string) error {
	code, ok := modeCodes[mode]
	if !ok {
		return fmt.Errorf("mode %q: %w", mode, ErrUnknownMode)
	}
	if s.ConnectionState() != Connected {
		return fmt.Errorf("set mode %s on %s: %w", mode, s.id, ErrNotConnected)
	}
	if err := s.issueRetryOnce(ctx, link.CmdSetMode, map[string]float64{"mode": code}, s.tun.CommandTimeout); err != nil {
		return fmt.Errorf("set mode %s on %s: %w", mode, s.id, err)
	}
	s.log.Info("mode set", "mode", mode)
	return nil
}

// Arm requests arming. Success requires an explicit positive ack.
func (s *Session) Arm(ctx context.Context) error {
	if s.ConnectionState() != Connected {
		return fmt.Errorf("arm %s: %w", s.id, ErrNotConnected)
	}
	s.mu.Lock()
	s.flight = ArmRequested
	s.mu.Unlock()
	if err := s.issueRetryOnce(ctx, link.CmdArm, map[string]float64{"arm": 1}, s.tun.CommandTimeout); err != nil {
		s.mu.Lock()
		s.flight = Grounded
		s.mu.Unlock()
		return fmt.Errorf("arm %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.flight = Armed
	s.mu.Unlock()
	s.log.Info("armed")
	return nil
}

// Takeoff sequences GUIDED mode, arming, the takeoff command, and the
// altitude-monitoring loop. Each step's failure short-circuits the rest.
func (s *Session) Takeoff(ctx context.Context, altitude float64) error {
	if err := s.SetMode(ctx, "GUIDED"); err != nil {
		return err
	}
	s.sleep(ctx, s.tun.StepSettle)
	if err := s.Arm(ctx); err != nil {
		return err
	}
	s.sleep(ctx, s.tun.StepSettle)
	if _, err := s.disp.Issue(ctx, link.CmdTakeoff, map[string]float64{"altitude": altitude}, s.tun.TakeoffAckTimeout); err != nil {
		return fmt.Errorf("takeoff %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.flight = TakingOff
	s.mu.Unlock()
	s.log.Info("taking off", "altitude_m", altitude)
	return s.awaitAltitude(ctx, altitude)
}

// awaitAltitude polls relative altitude until a success condition holds or
// the takeoff bound elapses. On timeout the session returns to Grounded;
// arming state is not rolled back.
func (s *Session) awaitAltitude(ctx context.Context, target float64) error {
	tk := s.tun.Takeoff
	deadline := time.Now().Add(tk.Timeout)
	stable := 0
	last := 0.0
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		alt := s.RelativeAltitude()
		if alt >= target*tk.SuccessFraction {
			s.toAirborne(alt)
			return nil
		}
		if math.Abs(alt-last) < tk.StableDelta {
			stable++
			if stable >= tk.StableSamples && alt >= target*tk.StableFraction {
				s.toAirborne(alt)
				return nil
			}
		} else {
			stable = 0
		}
		last = alt
		s.sleep(ctx, tk.Sample)
	}
	s.mu.Lock()
	s.flight = Grounded
	s.mu.Unlock()
	return fmt.Errorf("takeoff %s: altitude %.1fm of %.1fm after %s: %w", s.id, s.RelativeAltitude(), target, tk.Timeout, ErrTimeout)
}

func (s *Session) toAirborne(alt float64) {
	s.mu.Lock()
	s.flight = Airborne
	s.mu.Unlock()
	s.log.Info("airborne", "altitude_m", alt)
}

// MoveToTarget emits one bounded velocity setpoint toward target. It is
// called every control tick and never blocks: inside the arrival radius it
// commands zero velocity, outside it commands the unit direction scaled by
// speed with each axis clamped independently.
func (s *Session) MoveToTarget(target geometry.Vec3, speed float64) error {
	s.mu.Lock()
	s.target = target
	delta := target.Sub(s.pos)
	s.mu.Unlock()

	if delta.Length() <= s.tun.ArrivalRadius {
		return s.link.SendVelocity(0, 0, 0, 0)
	}
	v := delta.Unit().Scale(speed).Clamp(s.tun.MaxVelocity)
	return s.link.SendVelocity(v.X, v.Y, v.Z, 0)
}

// Stop commands zero velocity immediately.
func (s *Session) Stop() error { return s.link.SendVelocity(0, 0, 0, 0) }

// Land switches the vehicle to LAND mode. The Landing -> Grounded
// transition is confirmed later by the disarmed bit on the heartbeat, not
// by this call.
func (s *Session) Land(ctx context.Context) error {
	if err := s.SetMode(ctx, "LAND"); err != nil {
		return err
	}
	s.mu.Lock()
	s.flight = Landing
	s.mu.Unlock()
	s.log.Info("landing")
	return nil
}
