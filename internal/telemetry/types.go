// Flight telemetry structs with greptime tags
package telemetry

import (
	"os"
	"time"
)

// FlightRow is one per-vehicle control-tick record for GreptimeDB.
type FlightRow struct {
	RunID        string    `json:"run_id"`        // TAG
	VehicleID    string    `json:"vehicle_id"`    // TAG
	X            float64   `json:"x"`             // FIELD, meters east
	Y            float64   `json:"y"`             // FIELD, meters north
	Z            float64   `json:"z"`             // FIELD, meters up
	TargetX      float64   `json:"target_x"`      // FIELD
	TargetY      float64   `json:"target_y"`      // FIELD
	TargetZ      float64   `json:"target_z"`      // FIELD
	SlotDistance float64   `json:"slot_distance"` // FIELD, meters to assigned slot
	Connection   string    `json:"connection"`    // FIELD
	Flight       string    `json:"flight"`        // FIELD
	Pattern      string    `json:"pattern"`       // FIELD
	Timestamp    time.Time `json:"ts"`            // TIME INDEX
}

// FlightTableName holds the table name used when writing to GreptimeDB.
// It defaults to "formation_flight" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var FlightTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "formation_flight"
}()

func (FlightRow) TableName() string {
	return FlightTableName
}
