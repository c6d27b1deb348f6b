package fleet

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"formationctl/internal/config"
	"formationctl/internal/geometry"
	"formationctl/internal/link"
	"formationctl/internal/telemetry"
	"formationctl/internal/vehicle"
)

// stubLink scripts ack behavior and exposes telemetry callbacks so tests
// can drive heartbeat and altitude streams directly.
type stubLink struct {
	mu       sync.Mutex
	tokens   uint64
	commands []link.CommandKind
	vels     [][4]float64
	ackFor   map[link.CommandKind]bool
	hb       func(link.Heartbeat)
	alt      func(float64)
	ack      func(link.Ack)
}

func newStubLink() *stubLink {
	return &stubLink{ackFor: map[link.CommandKind]bool{
		link.CmdArm:     true,
		link.CmdSetMode: true,
		link.CmdTakeoff: true,
	}}
}

func (l *stubLink) Connect(ctx context.Context) error   { return nil }
func (l *stubLink) Close() error                        { return nil }
func (l *stubLink) OnHeartbeat(fn func(link.Heartbeat)) { l.hb = fn }
func (l *stubLink) OnPosition(fn func(geometry.Vec3))   {}
func (l *stubLink) OnRelativeAltitude(fn func(float64)) { l.alt = fn }
func (l *stubLink) OnAck(fn func(link.Ack))             { l.ack = fn }

func (l *stubLink) SendCommand(kind link.CommandKind, params map[string]float64) (uint64, error) {
	l.mu.Lock()
	l.tokens++
	token := l.tokens
	l.commands = append(l.commands, kind)
	success, ok := l.ackFor[kind]
	l.mu.Unlock()
	if ok {
		go l.ack(link.Ack{Kind: kind, Token: token, Success: success})
	}
	return token, nil
}

func (l *stubLink) SendVelocity(vx, vy, vz, yawRate float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vels = append(l.vels, [4]float64{vx, vy, vz, yawRate})
	return nil
}

func (l *stubLink) sent(kind link.CommandKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, k := range l.commands {
		if k == kind {
			n++
		}
	}
	return n
}

func (l *stubLink) velCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.vels)
}

func (l *stubLink) heartbeat(armed bool) {
	l.hb(link.Heartbeat{Armed: armed, Time: time.Now()})
}

type captureWriter struct {
	mu   sync.Mutex
	rows []telemetry.FlightRow
}

func (w *captureWriter) Write(row telemetry.FlightRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	return nil
}

type batchCaptureWriter struct {
	captureWriter
	batches int
}

func (w *batchCaptureWriter) WriteBatch(rows []telemetry.FlightRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, rows...)
	w.batches++
	return nil
}

func testConfig() *config.FleetConfig {
	cfg := &config.FleetConfig{
		Formation: config.Formation{Pattern: "line", SpacingM: 4, Center: geometry.Vec3{Z: 10}},
	}
	cfg.ApplyDefaults()
	ct := &cfg.Control
	ct.CommandTimeoutSeconds = 0.1
	ct.TakeoffAckSeconds = 0.1
	ct.StepSettleSeconds = 0.001
	ct.ConnectPollSeconds = 0.002
	ct.Takeoff.TimeoutSeconds = 0.1
	ct.Takeoff.SampleSeconds = 0.002
	return cfg
}

// recordSleeps replaces the coordinator's sleep with a recorder that
// returns immediately, and reports how often each duration was requested.
func recordSleeps(c *Coordinator) func(time.Duration) int {
	var mu sync.Mutex
	counts := map[time.Duration]int{}
	c.sleep = func(_ context.Context, d time.Duration) {
		mu.Lock()
		counts[d]++
		mu.Unlock()
	}
	return func(d time.Duration) int {
		mu.Lock()
		defer mu.Unlock()
		return counts[d]
	}
}

func newTestCoordinator(t *testing.T, w FlightWriter, links ...*stubLink) *Coordinator {
	t.Helper()
	c, err := New(testConfig(), w)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for i, l := range links {
		c.AddVehicle(ctx, "drone-"+string(rune('a'+i)), l)
	}
	return c
}

func TestNewRejectsUnknownPattern(t *testing.T) {
	cfg := testConfig()
	cfg.Formation.Pattern = "swarm-of-bees"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected unknown pattern to be rejected")
	}
}

func TestTickDrivesSlotsAndWritesRows(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink(), newStubLink()}
	w := &captureWriter{}
	c := newTestCoordinator(t, w, links...)
	ctx := context.Background()

	c.Start(ctx)
	c.tick(ctx)

	// Line of three at 4m spacing centers slots on x = -6, -2, 2.
	wantX := []float64{-6, -2, 2}
	w.mu.Lock()
	rows := append([]telemetry.FlightRow(nil), w.rows...)
	w.mu.Unlock()
	if len(rows) != 3 {
		t.Fatalf("wrote %d rows, want 3", len(rows))
	}
	for i, row := range rows {
		if math.Abs(row.TargetX-wantX[i]) > 1e-9 || row.TargetZ != 10 {
			t.Errorf("row %d target = (%f, %f, %f), want (%f, 0, 10)", i, row.TargetX, row.TargetY, row.TargetZ, wantX[i])
		}
		if row.Pattern != "line" {
			t.Errorf("row %d pattern = %q, want line", i, row.Pattern)
		}
		if row.RunID == "" {
			t.Errorf("row %d missing run id", i)
		}
	}
	for i, l := range links {
		if l.velCount() == 0 {
			t.Errorf("vehicle %d received no setpoint", i)
		}
	}
}

func TestTickInactiveIsNoOp(t *testing.T) {
	l := newStubLink()
	w := &captureWriter{}
	c := newTestCoordinator(t, w, l)

	c.tick(context.Background())

	if l.velCount() != 0 {
		t.Error("inactive tick must not send setpoints")
	}
	if len(w.rows) != 0 {
		t.Error("inactive tick must not write rows")
	}
}

func TestTickPrefersBatchWriter(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink()}
	w := &batchCaptureWriter{}
	c := newTestCoordinator(t, w, links...)
	ctx := context.Background()

	c.Start(ctx)
	c.tick(ctx)

	if w.batches != 1 {
		t.Errorf("batches = %d, want 1", w.batches)
	}
	if len(w.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(w.rows))
	}
}

func TestArmAllContinuesPastFailure(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink(), newStubLink()}
	links[1].ackFor[link.CmdArm] = false
	c := newTestCoordinator(t, nil, links...)
	for _, l := range links {
		l.heartbeat(false)
	}

	err := c.ArmAll(context.Background())
	if !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("expected aggregate with ErrRejected, got %v", err)
	}
	for i, l := range links {
		if got := l.sent(link.CmdArm); got != 1 {
			t.Errorf("vehicle %d arm attempts = %d, want 1", i, got)
		}
	}
	vs := c.Vehicles()
	if vs[0].Flight != "armed" || vs[2].Flight != "armed" {
		t.Errorf("healthy vehicles = %s/%s, want armed/armed", vs[0].Flight, vs[2].Flight)
	}
	if vs[1].Flight != "grounded" {
		t.Errorf("rejected vehicle = %s, want grounded", vs[1].Flight)
	}
}

func TestTakeoffFormationStaggersAndSettles(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink(), newStubLink()}
	c := newTestCoordinator(t, nil, links...)
	slept := recordSleeps(c)
	for _, l := range links {
		l.heartbeat(false)
		l.alt(9.5)
	}

	if err := c.TakeoffFormation(context.Background(), 10); err != nil {
		t.Fatalf("TakeoffFormation: %v", err)
	}
	if got := slept(c.ctl.TakeoffStagger()); got != 2 {
		t.Errorf("stagger sleeps = %d, want 2 for 3 vehicles", got)
	}
	if got := slept(c.ctl.FormationSettle()); got != 1 {
		t.Errorf("settle sleeps = %d, want 1", got)
	}
	for i, l := range links {
		if got := l.sent(link.CmdTakeoff); got != 1 {
			t.Errorf("vehicle %d takeoff commands = %d, want 1", i, got)
		}
	}
}

func TestTakeoffFormationAbortsOnFailure(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink(), newStubLink()}
	links[1].ackFor[link.CmdTakeoff] = false
	c := newTestCoordinator(t, nil, links...)
	recordSleeps(c)
	for _, l := range links {
		l.heartbeat(false)
		l.alt(9.5)
	}

	err := c.TakeoffFormation(context.Background(), 10)
	if !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if got := links[2].sent(link.CmdTakeoff); got != 0 {
		t.Errorf("vehicle after the failure got %d takeoff commands, want 0", got)
	}
}

func TestLandFormationBestEffort(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink(), newStubLink()}
	links[1].ackFor[link.CmdSetMode] = false
	c := newTestCoordinator(t, nil, links...)
	recordSleeps(c)
	ctx := context.Background()
	for _, l := range links {
		l.heartbeat(true)
	}

	c.Start(ctx)
	c.LandFormation(ctx)

	if got := links[2].sent(link.CmdSetMode); got != 1 {
		t.Errorf("vehicle after the failure got %d mode commands, want 1", got)
	}
	if c.Status().Active {
		t.Error("formation still active after landing")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := newStubLink()
	c := newTestCoordinator(t, nil, l)
	ctx := context.Background()

	c.Start(ctx)
	c.Stop(ctx)
	c.Stop(ctx)

	if got := l.velCount(); got != 2 {
		t.Errorf("stop setpoints = %d, want one zero-velocity send per Stop", got)
	}
	if c.Status().Active {
		t.Error("formation active after stop")
	}
}

func TestAwaitAllConnectedTimeout(t *testing.T) {
	links := []*stubLink{newStubLink(), newStubLink()}
	c := newTestCoordinator(t, nil, links...)
	links[0].heartbeat(false)

	err := c.AwaitAllConnected(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, vehicle.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	links[1].heartbeat(false)
	if err := c.AwaitAllConnected(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("AwaitAllConnected with all heartbeats: %v", err)
	}
}

func TestSetPatternRejectsUnknown(t *testing.T) {
	c := newTestCoordinator(t, nil, newStubLink())

	if err := c.SetPattern("wedge"); err == nil {
		t.Fatal("expected unknown pattern error")
	}
	if got := c.Status().Pattern; got != "line" {
		t.Errorf("pattern = %q after rejected switch, want line", got)
	}
	if err := c.SetPattern("CIRCLE"); err != nil {
		t.Fatalf("SetPattern circle: %v", err)
	}
	if got := c.Status().Pattern; got != "circle" {
		t.Errorf("pattern = %q, want circle", got)
	}
}

func TestMoveFormationBy(t *testing.T) {
	c := newTestCoordinator(t, nil, newStubLink())

	got := c.MoveFormationBy(5, 0, -2)
	want := geometry.Vec3{X: 5, Y: 0, Z: 8}
	if got != want {
		t.Errorf("center = %v, want %v", got, want)
	}
}
