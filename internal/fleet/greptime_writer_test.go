package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"formationctl/internal/telemetry"
)

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return nil, m.err
}

func sampleRow() telemetry.FlightRow {
	return telemetry.FlightRow{
		RunID:        "run-1",
		VehicleID:    "drone-a",
		X:            1,
		Y:            2,
		Z:            10,
		TargetX:      1.5,
		TargetY:      2,
		TargetZ:      10,
		SlotDistance: 0.5,
		Connection:   "connected",
		Flight:       "airborne",
		Pattern:      "line",
		Timestamp:    time.Now().UTC(),
	}
}

func TestGreptimeWriteBatchSendsOneTable(t *testing.T) {
	mock := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: mock, table: "formation_flight"}

	rows := []telemetry.FlightRow{sampleRow(), sampleRow()}
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(mock.tables) != 1 {
		t.Fatalf("client received %d tables, want 1", len(mock.tables))
	}
}

func TestGreptimeWriteEmptyBatchSkipsClient(t *testing.T) {
	mock := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: mock, table: "formation_flight"}

	if err := w.WriteBatch(nil); err != nil {
		t.Fatalf("WriteBatch(nil): %v", err)
	}
	if len(mock.tables) != 0 {
		t.Errorf("empty batch must not reach the client, got %d tables", len(mock.tables))
	}
}

func TestGreptimeWriteSurfacesClientError(t *testing.T) {
	wantErr := errors.New("connection refused")
	w := &GreptimeDBWriter{client: &mockGreptimeClient{err: wantErr}, table: "formation_flight"}

	if err := w.Write(sampleRow()); !errors.Is(err, wantErr) {
		t.Fatalf("expected client error surfaced, got %v", err)
	}
}
