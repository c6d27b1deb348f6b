package vehicle

import (
	"context"
	"errors"
	"testing"
	"time"

	"formationctl/internal/link"
)

func TestIssueResolvesOnAck(t *testing.T) {
	fl := newFakeLink()
	d := NewDispatcher(fl)

	ack, err := d.Issue(context.Background(), link.CmdArm, nil, time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ack.Kind != link.CmdArm || !ack.Success {
		t.Errorf("ack = %+v, want positive arm ack", ack)
	}
	if got := fl.sent(link.CmdArm); got != 1 {
		t.Errorf("sent %d commands, want exactly 1", got)
	}
}

func TestIssueNegativeAckIsRejection(t *testing.T) {
	fl := newFakeLink()
	fl.ackFor[link.CmdSetMode] = false
	d := NewDispatcher(fl)

	_, err := d.Issue(context.Background(), link.CmdSetMode, map[string]float64{"mode": link.ModeGuided}, time.Second)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestIssueTimesOutWithoutAck(t *testing.T) {
	fl := newFakeLink()
	delete(fl.ackFor, link.CmdTakeoff)
	d := NewDispatcher(fl)

	_, err := d.Issue(context.Background(), link.CmdTakeoff, map[string]float64{"altitude": 10}, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	d.mu.Lock()
	n := len(d.pending)
	d.mu.Unlock()
	if n != 0 {
		t.Errorf("pending table holds %d abandoned entries, want 0", n)
	}
}

func TestIssueHonorsContextCancel(t *testing.T) {
	fl := newFakeLink()
	delete(fl.ackFor, link.CmdArm)
	d := NewDispatcher(fl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Issue(ctx, link.CmdArm, nil, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
