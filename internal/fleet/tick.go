package fleet

import (
	"context"
	"time"

	"formationctl/internal/formation"
	"formationctl/internal/geometry"
	"formationctl/internal/logging"
	"formationctl/internal/telemetry"
	"formationctl/internal/vehicle"
)

// Run drives the control loop at the configured tick period until the
// context is done. The loop itself never blocks: each tick only computes
// targets and sends velocity setpoints.
func (c *Coordinator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("control loop starting", "tick", c.ctl.Tick())
	ticker := time.NewTicker(c.ctl.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick(ctx)
		case <-ctx.Done():
			log.Info("control loop stopping")
			return
		}
	}
}

// tick computes the pattern's target sequence once and drives every
// session toward its slot, then records one telemetry row per vehicle.
// No-op unless the formation is active.
func (c *Coordinator) tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || len(c.sessions) == 0 {
		return
	}

	targets := formation.Positions(c.pattern, len(c.sessions), c.center, c.spacing)
	var batch []telemetry.FlightRow
	for i, s := range c.sessions {
		if i >= len(targets) {
			// Length invariant guarantees this doesn't happen; extra
			// vehicles are left unmoved rather than erroring.
			break
		}
		if err := s.MoveToTarget(targets[i], c.ctl.CruiseSpeedMPS); err != nil {
			log.Error("setpoint send failed", "vehicle", s.ID(), "err", err)
		}
		batch = append(batch, c.flightRow(s, targets[i]))
	}

	if c.writer == nil {
		return
	}
	if bw, ok := c.writer.(batchWriter); ok {
		if err := bw.WriteBatch(batch); err != nil {
			log.Error("flight batch write failed", "err", err)
		}
		return
	}
	for _, row := range batch {
		if err := c.writer.Write(row); err != nil {
			log.Error("flight write failed", "vehicle", row.VehicleID, "err", err)
		}
	}
}

func (c *Coordinator) flightRow(s *vehicle.Session, target geometry.Vec3) telemetry.FlightRow {
	pos := s.Position()
	return telemetry.FlightRow{
		RunID:        c.runID,
		VehicleID:    s.ID(),
		X:            pos.X,
		Y:            pos.Y,
		Z:            pos.Z,
		TargetX:      target.X,
		TargetY:      target.Y,
		TargetZ:      target.Z,
		SlotDistance: geometry.Dist(pos, target),
		Connection:   s.ConnectionState().String(),
		Flight:       s.FlightState().String(),
		Pattern:      c.pattern.String(),
		Timestamp:    c.now().UTC(),
	}
}
