// Package tcp is the default, production transport.Transport: plain TCP
// stream sockets, one goroutine per connection feeding a shared inbound
// queue that Recv drains.
package tcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdsmart/mdc/pkg/transport"
)

func init() {
	transport.Register("tcp", func() transport.Transport { return New() })
}

type inbound struct {
	channelID uint32
	payload   []byte
}

// Transport is a TCP-backed transport.Transport.
type Transport struct {
	mu      sync.Mutex
	conns   map[uint32]net.Conn
	nextID  uint32
	rx      chan inbound
}

// New builds an unconnected TCP transport.
func New() *Transport {
	return &Transport{
		conns: make(map[uint32]net.Conn),
		rx:    make(chan inbound, 256),
	}
}

func (t *Transport) allocID() uint32 {
	return atomic.AddUint32(&t.nextID, 1)
}

// Connect dials addr over TCP and starts a reader goroutine for it.
func (t *Transport) Connect(ctx context.Context, addr string) (uint32, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}
	id := t.allocID()
	t.mu.Lock()
	t.conns[id] = conn
	t.mu.Unlock()
	go t.readLoop(id, conn)
	return id, nil
}

type tcpListener struct {
	ln net.Listener
	t  *Transport
}

func (l *tcpListener) Accept(ctx context.Context) (uint32, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return 0, r.err
		}
		id := l.t.allocID()
		l.t.mu.Lock()
		l.t.conns[id] = r.conn
		l.t.mu.Unlock()
		go l.t.readLoop(id, r.conn)
		return id, nil
	}
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

// Listen starts accepting inbound TCP connections on addr.
func (t *Transport) Listen(ctx context.Context, addr string) (transport.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln, t: t}, nil
}

// readLoop reads length-prefixed frames (4-byte big-endian length then
// payload) and pushes them onto the shared inbound queue.
func (t *Transport) readLoop(id uint32, conn net.Conn) {
	r := bufio.NewReader(conn)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		select {
		case t.rx <- inbound{channelID: id, payload: buf}:
		default:
			// drop on a full queue rather than block the reader
		}
	}
}

// Send writes a length-prefixed frame to the given channel's connection.
func (t *Transport) Send(channelID uint32, p []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[channelID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("tcp: unknown channel %d", channelID)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(p)
	return err
}

// Recv returns the next inbound frame across all channels.
func (t *Transport) Recv(timeout time.Duration) ([]byte, uint32, bool, error) {
	select {
	case in := <-t.rx:
		return in.payload, in.channelID, true, nil
	case <-time.After(timeout):
		return nil, 0, false, nil
	}
}

// Release closes and forgets a channel's connection.
func (t *Transport) Release(channelID uint32) error {
	t.mu.Lock()
	conn, ok := t.conns[channelID]
	delete(t.conns, channelID)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

func (t *Transport) ResolveIP(host string) (string, error) {
	return transport.ResolveHostIP(host)
}

func (t *Transport) ResolveService(name string) (int, error) {
	return transport.ResolveServicePort(name)
}

func (t *Transport) RegisterTimer(periodMs uint32, mode transport.TimerMode, fn func()) func() {
	return transport.RegisterTimerFunc(periodMs, mode, fn)
}
