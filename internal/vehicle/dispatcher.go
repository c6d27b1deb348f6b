package vehicle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"formationctl/internal/link"
)

// Expected failure modes surfaced to callers. Anything else is a
// programming error and fails fast before a transport send.
var (
	ErrTimeout      = errors.New("command timed out")
	ErrRejected     = errors.New("command rejected")
	ErrNotConnected = errors.New("vehicle not connected")
	ErrUnknownMode  = errors.New("unknown flight mode")
)

// Dispatcher correlates issued commands with their asynchronous
// acknowledgments. One transport send happens per Issue call; retries are
// the caller's decision.
type Dispatcher struct {
	link link.Link

	mu      sync.Mutex
	pending map[uint64]chan link.Ack
}

// NewDispatcher wires a dispatcher to a link's ack stream. It must be the
// only OnAck consumer for that link.
func NewDispatcher(l link.Link) *Dispatcher {
	d := &Dispatcher{link: l, pending: make(map[uint64]chan link.Ack)}
	l.OnAck(d.resolve)
	return d
}

func (d *Dispatcher) resolve(a link.Ack) {
	d.mu.Lock()
	ch, ok := d.pending[a.Token]
	if ok {
		delete(d.pending, a.Token)
	}
	d.mu.Unlock()
	if ok {
		ch <- a
	}
}

// Issue sends the command and blocks until a matching ack arrives or the
// timeout elapses. A negative ack returns ErrRejected; an absent one
// returns ErrTimeout.
func (d *Dispatcher) Issue(ctx context.Context, kind link.CommandKind, params map[string]float64, timeout time.Duration) (link.Ack, error) {
	ch := make(chan link.Ack, 1)

	// Registration happens under the same lock as the send so an ack can
	// never race past the pending table.
	d.mu.Lock()
	token, err := d.link.SendCommand(kind, params)
	if err != nil {
		d.mu.Unlock()
		return link.Ack{}, fmt.Errorf("send %s: %w", kind, err)
	}
	d.pending[token] = ch
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if !ack.Success {
			return ack, fmt.Errorf("%s: %w", kind, ErrRejected)
		}
		return ack, nil
	case <-timer.C:
		d.abandon(token)
		return link.Ack{}, fmt.Errorf("%s after %s: %w", kind, timeout, ErrTimeout)
	case <-ctx.Done():
		d.abandon(token)
		return link.Ack{}, ctx.Err()
	}
}

func (d *Dispatcher) abandon(token uint64) {
	d.mu.Lock()
	delete(d.pending, token)
	d.mu.Unlock()
}
