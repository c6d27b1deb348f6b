// Package link defines the transport boundary to a vehicle: typed command
// requests out, telemetry and acknowledgment events in. The core is a
// protocol client; the wire protocol itself lives behind this interface.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formationctl/internal/geometry"
)

// CommandKind identifies a command sent over a link.
type CommandKind string

const (
	CmdArm     CommandKind = "arm"
	CmdSetMode CommandKind = "set_mode"
	CmdTakeoff CommandKind = "takeoff"
	CmdLand    CommandKind = "land"
)

// Ack is the asynchronous acknowledgment for a previously sent command,
// correlated by kind and token.
type Ack struct {
	Kind    CommandKind
	Token   uint64
	Success bool
}

// Heartbeat is the periodic liveness signal. The armed bit rides on it,
// mirroring how autopilot heartbeats carry the armed flag.
type Heartbeat struct {
	Armed bool
	Time  time.Time
}

// Link is a bidirectional channel to one vehicle. Handler registration must
// happen before Connect; handlers are invoked from the link's own goroutine.
type Link interface {
	Connect(ctx context.Context) error
	Close() error

	OnHeartbeat(func(Heartbeat))
	OnPosition(func(geometry.Vec3))
	OnRelativeAltitude(func(float64))
	OnAck(func(Ack))

	// SendCommand transmits a command and returns its correlation token.
	SendCommand(kind CommandKind, params map[string]float64) (uint64, error)
	// SendVelocity transmits a velocity setpoint. Fire-and-forget, no ack.
	SendVelocity(vx, vy, vz, yawRate float64) error
}

// ErrUnknownTransport is returned for addresses with no registered driver.
var ErrUnknownTransport = errors.New("unknown transport scheme")

// New builds a Link for the given address. Only the sim:// scheme has a
// built-in driver; real autopilot transports are wired in by the embedding
// application.
func New(address string) (Link, error) {
	switch {
	case strings.HasPrefix(address, "sim://"):
		return NewSimLink(strings.TrimPrefix(address, "sim://")), nil
	default:
		return nil, fmt.Errorf("address %q: %w", address, ErrUnknownTransport)
	}
}
