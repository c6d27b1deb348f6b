package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"formationctl/internal/geometry"
)

// Autopilot custom-mode encoding used on the wire.
const (
	ModeStabilize = 0
	ModeGuided    = 4
	ModeLoiter    = 5
	ModeRTL       = 6
	ModeLand      = 9
)

// SimLink is an in-process simulated vehicle. It answers heartbeats,
// acknowledges commands after a short delay, integrates velocity setpoints,
// and models a constant-rate climb on takeoff and descent on landing. It
// exists so the full connect/arm/takeoff/formation/land cycle can run
// without hardware.
type SimLink struct {
	Name string

	// Tuning, settable before Connect.
	HeartbeatInterval time.Duration
	AckDelay          time.Duration
	ClimbRateMPS      float64
	DescendRateMPS    float64

	// Fault injection for tests and drills.
	RejectArm      bool    // arm acked with success=false
	DropTakeoffAck bool    // takeoff ack never delivered
	StallAltitudeM float64 // if >0, climb never exceeds this altitude

	mu        sync.Mutex
	tokens    uint64
	armed     bool
	mode      float64
	targetAlt float64
	climbing  bool
	pos       geometry.Vec3
	vel       geometry.Vec3

	onHeartbeat func(Heartbeat)
	onPosition  func(geometry.Vec3)
	onRelAlt    func(float64)
	onAck       func(Ack)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSimLink creates a simulated vehicle link with stock rates.
func NewSimLink(name string) *SimLink {
	return &SimLink{
		Name:              name,
		HeartbeatInterval: 100 * time.Millisecond,
		AckDelay:          50 * time.Millisecond,
		ClimbRateMPS:      2.5,
		DescendRateMPS:    1.5,
	}
}

func (l *SimLink) OnHeartbeat(fn func(Heartbeat))      { l.onHeartbeat = fn }
func (l *SimLink) OnPosition(fn func(geometry.Vec3))   { l.onPosition = fn }
func (l *SimLink) OnRelativeAltitude(fn func(float64)) { l.onRelAlt = fn }
func (l *SimLink) OnAck(fn func(Ack))                  { l.onAck = fn }

// Connect starts the vehicle loop. Telemetry begins flowing immediately.
func (l *SimLink) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx)
	return nil
}

// Close stops the vehicle loop and waits for it to exit.
func (l *SimLink) Close() error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	<-l.done
	return nil
}

func (l *SimLink) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.HeartbeatInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			l.step(now.Sub(last).Seconds())
			last = now
		case <-ctx.Done():
			return
		}
	}
}

// step advances the vehicle model by dt seconds and emits telemetry.
func (l *SimLink) step(dt float64) {
	l.mu.Lock()
	switch {
	case l.armed && l.mode == ModeLand:
		l.pos.Z -= l.DescendRateMPS * dt
		if l.pos.Z <= 0 {
			l.pos.Z = 0
			l.armed = false
		}
	case l.armed && l.climbing:
		ceiling := l.targetAlt
		if l.StallAltitudeM > 0 && l.StallAltitudeM < ceiling {
			ceiling = l.StallAltitudeM
		}
		l.pos.Z += l.ClimbRateMPS * dt
		if l.pos.Z >= ceiling {
			l.pos.Z = ceiling
			if ceiling == l.targetAlt {
				l.climbing = false
			}
		}
	case l.armed:
		l.pos = l.pos.Add(l.vel.Scale(dt))
		if l.pos.Z < 0 {
			l.pos.Z = 0
		}
	}
	armed := l.armed
	pos := l.pos
	hb, onPos, onAlt := l.onHeartbeat, l.onPosition, l.onRelAlt
	l.mu.Unlock()

	if hb != nil {
		hb(Heartbeat{Armed: armed, Time: time.Now()})
	}
	if onPos != nil {
		onPos(pos)
	}
	if onAlt != nil {
		onAlt(pos.Z)
	}
}

// SendCommand applies the command's effect after AckDelay and delivers the
// correlated ack.
func (l *SimLink) SendCommand(kind CommandKind, params map[string]float64) (uint64, error) {
	l.mu.Lock()
	l.tokens++
	token := l.tokens
	l.mu.Unlock()

	time.AfterFunc(l.AckDelay, func() {
		l.mu.Lock()
		ack := Ack{Kind: kind, Token: token, Success: true}
		deliver := true
		switch kind {
		case CmdArm:
			if l.RejectArm {
				ack.Success = false
			} else {
				l.armed = true
			}
		case CmdSetMode:
			l.mode = params["mode"]
		case CmdTakeoff:
			if l.DropTakeoffAck {
				deliver = false
			} else if !l.armed {
				ack.Success = false
			} else {
				l.targetAlt = params["altitude"]
				l.climbing = true
			}
		case CmdLand:
			l.mode = ModeLand
		}
		onAck := l.onAck
		l.mu.Unlock()
		if deliver && onAck != nil {
			onAck(ack)
		}
	})
	return token, nil
}

// SendVelocity sets the velocity integrated by the vehicle loop.
func (l *SimLink) SendVelocity(vx, vy, vz, yawRate float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return errors.New("simlink: not connected")
	}
	l.vel = geometry.Vec3{X: vx, Y: vy, Z: vz}
	return nil
}
