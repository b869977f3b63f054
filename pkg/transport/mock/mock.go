// Package mock is an in-process transport.Transport for tests, grounded
// on the teacher's pkg/can/virtual in-memory bus: two ends of a pipe
// joined without touching the network at all.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdsmart/mdc/pkg/transport"
)

func init() {
	transport.Register("mock", func() transport.Transport { return New() })
}

type inbound struct {
	channelID uint32
	payload   []byte
}

// Transport is an in-process transport: everything Sent on a channel is
// immediately visible to Recv on the peer Transport of its Pair, as if a
// server and client shared one process. A Transport built by New has no
// peer and drops what is sent. Tests wire a client Transport and a server
// Transport to the two halves of one Pair.
type Transport struct {
	mu     sync.Mutex
	peer   *Transport
	nextID uint32
	rx     chan inbound
	closed map[uint32]bool
}

// New builds a standalone mock transport with no peer.
func New() *Transport {
	return &Transport{rx: make(chan inbound, 256), closed: make(map[uint32]bool)}
}

// Pair builds two mock transports wired to each other: sends on one
// arrive as Recv on the other, under a shared channel id.
func Pair() (client *Transport, server *Transport) {
	a := New()
	b := New()
	a.peer = b
	b.peer = a
	return a, b
}

func (t *Transport) allocID() uint32 {
	return atomic.AddUint32(&t.nextID, 1)
}

// Connect allocates a new channel id. The peer is not notified; it first
// sees the id on the first frame sent on it.
func (t *Transport) Connect(ctx context.Context, addr string) (uint32, error) {
	id := t.allocID()
	return id, nil
}

type mockListener struct {
	t *Transport
}

// Accept has nothing to model for a loopback transport: there is no
// distinct listen socket, so it simply blocks until ctx is cancelled.
// Tests drive channels directly through Send/Recv instead of Accept.
func (l *mockListener) Accept(ctx context.Context) (uint32, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (l *mockListener) Close() error { return nil }

func (t *Transport) Listen(ctx context.Context, addr string) (transport.Listener, error) {
	return &mockListener{t: t}, nil
}

// Send hands the payload directly to the peer's inbound queue.
func (t *Transport) Send(channelID uint32, p []byte) error {
	if t.peer == nil {
		return nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case t.peer.rx <- inbound{channelID: channelID, payload: buf}:
	default:
	}
	return nil
}

func (t *Transport) Recv(timeout time.Duration) ([]byte, uint32, bool, error) {
	select {
	case in := <-t.rx:
		return in.payload, in.channelID, true, nil
	case <-time.After(timeout):
		return nil, 0, false, nil
	}
}

func (t *Transport) Release(channelID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed[channelID] = true
	return nil
}

func (t *Transport) ResolveIP(host string) (string, error) { return host, nil }

func (t *Transport) ResolveService(name string) (int, error) { return 0, nil }

func (t *Transport) RegisterTimer(periodMs uint32, mode transport.TimerMode, fn func()) func() {
	return transport.RegisterTimerFunc(periodMs, mode, fn)
}
