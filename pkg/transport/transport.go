// Package transport abstracts the stream-socket collaborator beneath the
// MDC protocol: connect/listen, send, poll-driven delivery of inbound
// data, and a small timer facility used for keep-alives.
package transport

import (
	"context"
	"time"
)

// TimerMode selects one-shot vs periodic firing for RegisterTimer.
type TimerMode int

const (
	TimerOneShot TimerMode = iota
	TimerPeriodic
)

// Listener accepts inbound channels on the server side.
type Listener interface {
	// Accept blocks until a new channel connects, or ctx is done.
	Accept(ctx context.Context) (channelID uint32, err error)
	Close() error
}

// Transport is the pluggable stream-socket collaborator. Concrete
// implementations register themselves under a name via Register.
type Transport interface {
	// Connect dials addr and returns the assigned channel id.
	Connect(ctx context.Context, addr string) (uint32, error)
	// Listen starts accepting inbound connections on addr.
	Listen(ctx context.Context, addr string) (Listener, error)
	// Send writes a fully framed packet to the given channel.
	Send(channelID uint32, p []byte) error
	// Recv returns the next inbound frame for any channel, blocking up
	// to timeout. Returns (nil, 0, false, nil) on timeout with no data.
	Recv(timeout time.Duration) (payload []byte, channelID uint32, ok bool, err error)
	// Release tears down a channel's underlying connection.
	Release(channelID uint32) error
	// ResolveIP resolves a hostname to a dialable address.
	ResolveIP(host string) (string, error)
	// ResolveService resolves a service name to a TCP port, consulting
	// DNS SRV records before falling back to /etc/services.
	ResolveService(name string) (int, error)
	// RegisterTimer arranges for fn to be called after periodMs
	// milliseconds (TimerOneShot) or every periodMs milliseconds
	// (TimerPeriodic). The returned func cancels it.
	RegisterTimer(periodMs uint32, mode TimerMode, fn func()) (cancel func())
}

// NewTransportFunc constructs a fresh Transport instance.
type NewTransportFunc func() Transport

var transportRegistry = make(map[string]NewTransportFunc)

// Register makes a transport constructor available under name.
func Register(name string, fn NewTransportFunc) {
	transportRegistry[name] = fn
}

// New builds a Transport by registered name ("tcp", "mock", ...).
func New(name string) (Transport, error) {
	fn, ok := transportRegistry[name]
	if !ok {
		return nil, &UnknownTransportError{Name: name}
	}
	return fn(), nil
}

// UnknownTransportError is returned by New for an unregistered name.
type UnknownTransportError struct{ Name string }

func (e *UnknownTransportError) Error() string {
	return "transport: unknown transport " + e.Name
}
