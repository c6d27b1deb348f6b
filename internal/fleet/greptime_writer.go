package fleet

import (
	"context"
	"log/slog"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"formationctl/internal/telemetry"
)

// greptimeClient abstracts the ingester client for testing.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes flight rows to GreptimeDB via the ingester
// client. The table is auto-created on first write.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter creates a GreptimeDB writer for the given endpoint
// and database.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client: client,
		table:  telemetry.FlightTableName,
	}, nil
}

// Write inserts a single flight row.
func (w *GreptimeDBWriter) Write(row telemetry.FlightRow) error {
	return w.WriteBatch([]telemetry.FlightRow{row})
}

// WriteBatch inserts multiple flight rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.FlightRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("vehicle_id", types.STRING); err != nil {
		return err
	}
	for _, col := range []string{"x", "y", "z", "target_x", "target_y", "target_z", "slot_distance"} {
		if err := tbl.AddFieldColumn(col, types.FLOAT); err != nil {
			return err
		}
	}
	for _, col := range []string{"connection", "flight", "pattern"} {
		if err := tbl.AddFieldColumn(col, types.STRING); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, r.VehicleID,
			r.X, r.Y, r.Z,
			r.TargetX, r.TargetY, r.TargetZ, r.SlotDistance,
			r.Connection, r.Flight, r.Pattern,
			r.Timestamp); err != nil {
			return err
		}
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		slog.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	return nil
}
