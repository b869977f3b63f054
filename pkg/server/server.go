// Package server implements the MDC server engine: accept inbound
// channels, admit frames into a FIFO, dispatch them to a user handler,
// and emit ACK/NAK/DATA replies. Out-of-band ABORT/EXIT frames bypass the
// FIFO entirely.
//
// The dispatch loop is grounded directly on the teacher's
// SDOServer.Process(ctx) in pkg/sdo/server.go: an outer select on
// ctx.Done(), an inner select between the FIFO channel and a poll-timeout
// ticker. A buffered Go channel standing in for the admission FIFO is
// exactly how the teacher already expresses a software FIFO.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdsmart/mdc/pkg/protocol"
	"github.com/pdsmart/mdc/pkg/services"
	"github.com/pdsmart/mdc/pkg/transport"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
)

// DefaultPollTimeout is the teacher's DEF_POLLTIME equivalent: how often
// the dispatch loop wakes up with nothing to do, just to re-check its
// shutdown flag.
const DefaultPollTimeout = 1000 * time.Millisecond

// frameCarrier is one admitted FIFO entry: the channel it arrived on plus
// its decoded tag and payload.
type frameCarrier struct {
	channelID uint32
	tag       protocol.Tag
	payload   []byte
}

// Server is the process-wide server handle.
type Server struct {
	mu sync.Mutex

	tr          transport.Transport
	framer      *protocol.Framer
	handlers    *services.Registry
	log         logrus.FieldLogger
	controlSink func(event string, channelID uint32)

	fifo       chan frameCarrier
	activeChan uint32
	shutdown   bool

	// chanKind and chanCreds record, per channel id, the service kind and
	// credentials last selected by an INIT/CHANGE frame. handlePREQ
	// consults these to route to the right Handler instead of guessing.
	chanKind  map[uint32]byte
	chanCreds map[uint32]protocol.Credentials
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithFIFODepth overrides the default FIFO buffer depth of 64 carriers.
func WithFIFODepth(n int) Option {
	return func(s *Server) { s.fifo = make(chan frameCarrier, n) }
}

// WithTransport injects a pre-built transport.Transport, bypassing the
// name-based registry. Tests use this to wire a mock.Pair() half directly.
func WithTransport(tr transport.Transport) Option {
	return func(s *Server) { s.tr = tr }
}

// WithControlSink installs the user control sink invoked for NEWSERVICE (on
// accept) and ABORT/EXIT (on OOB control frames). LINKDOWN/LINKFAIL are not
// modeled as distinct events: the Transport interface exposes no signal for
// a link failure separate from a plain accept/read error, so only the
// events the transport can actually observe are raised (see DESIGN.md).
func WithControlSink(fn func(event string, channelID uint32)) Option {
	return func(s *Server) { s.controlSink = fn }
}

// New builds a Server over the named transport ("tcp" or "mock") and a
// back-end service handler registry.
func New(transportName string, handlers *services.Registry, opts ...Option) (*Server, error) {
	tr, err := transport.New(transportName)
	if err != nil {
		return nil, err
	}
	framer, err := protocol.NewFramer(protocol.Default)
	if err != nil {
		return nil, err
	}
	s := &Server{
		tr:        tr,
		framer:    framer,
		handlers:  handlers,
		log:       logrus.StandardLogger(),
		fifo:      make(chan frameCarrier, 64),
		chanKind:  make(map[uint32]byte),
		chanCreds: make(map[uint32]protocol.Credentials),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sink invokes the control sink, if one was configured.
func (s *Server) sink(event string, channelID uint32) {
	if s.controlSink != nil {
		s.controlSink(event, channelID)
	}
}

// Serve accepts inbound channels on addr and runs the dispatch loop until
// ctx is cancelled or an EXIT control frame arrives.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := s.tr.Listen(ctx, addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go s.acceptLoop(ctx, ln)
	go s.admitLoop(ctx)

	return s.dispatchLoop(ctx)
}

func (s *Server) acceptLoop(ctx context.Context, ln transport.Listener) {
	for {
		id, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warnf("[SERVER] accept error: %v", err)
			continue
		}
		s.mu.Lock()
		s.activeChan = id
		s.mu.Unlock()
		s.log.Debugf("[SERVER][x%x] channel connected", id)
		s.sink("NEWSERVICE", id)
	}
}

// admitLoop reads raw frames off the transport, unframes them, and either
// short-circuits OOB control frames or admits everything else to the
// FIFO. This is steps 1-3 of the server's receive path.
func (s *Server) admitLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		wire, chID, ok, err := s.tr.Recv(250 * time.Millisecond)
		if !ok {
			if err != nil {
				s.log.Debugf("[SERVER][RX] recv error: %v", err)
			}
			continue
		}
		tag, payload, err := s.framer.Unframe(wire)
		if err != nil {
			s.log.Warnf("[SERVER][RX][x%x] malformed packet: %v", chID, err)
			s.nak(chID, "malformed packet: "+err.Error())
			continue
		}
		raw := append([]byte{byte(tag)}, payload...)
		if protocol.IsOOB(raw) {
			s.handleOOB(chID, tag)
			continue
		}
		select {
		case s.fifo <- frameCarrier{channelID: chID, tag: tag, payload: payload}:
		default:
			s.log.Warnf("[SERVER][RX][x%x] FIFO full, dropping frame", chID)
			s.nak(chID, protocol.MemoryExhaustedCode+" server queue full")
		}
	}
}

func (s *Server) handleOOB(chID uint32, tag protocol.Tag) {
	switch tag {
	case protocol.TagABORT:
		s.log.Infof("[SERVER][x%x] OOB ABORT", chID)
		s.tr.Release(chID)
		s.sink("ABORT", chID)
	case protocol.TagEXIT:
		s.log.Infof("[SERVER][x%x] OOB EXIT", chID)
		s.mu.Lock()
		s.shutdown = true
		delete(s.chanKind, chID)
		delete(s.chanCreds, chID)
		s.mu.Unlock()
		s.sink("EXIT", chID)
	}
}

// dispatchLoop pulls admitted frames off the FIFO and hands them to the
// configured back-end handler, the same two-level select shape as the
// teacher's SDOServer.Process(ctx).
func (s *Server) dispatchLoop(ctx context.Context) error {
	for {
		s.mu.Lock()
		shutdown := s.shutdown
		s.mu.Unlock()
		if shutdown {
			s.log.Info("[SERVER] shutdown requested, exiting dispatch loop")
			return nil
		}
		select {
		case <-ctx.Done():
			s.log.Info("[SERVER] context cancelled, exiting dispatch loop")
			return ctx.Err()
		case carrier := <-s.fifo:
			s.handleCarrier(carrier)
		case <-time.After(DefaultPollTimeout):
			// idle tick, re-check shutdown flag
		}
	}
}

func (s *Server) handleCarrier(c frameCarrier) {
	switch c.tag {
	case protocol.TagINIT, protocol.TagCHANGE:
		s.handleServiceSelect(c)
	case protocol.TagPREQ:
		s.handlePREQ(c)
	default:
		s.log.Debugf("[SERVER][RX][x%x] unexpected tag %c", c.channelID, byte(c.tag))
	}
}

// handleServiceSelect is the shared INIT/CHANGE path: both tags carry the
// same service-selection payload (protocol.Credentials.Encode()) and
// differ only in when a spec-conformant peer sends them (first connect vs
// later change-of-service), so both record the selected kind and
// credentials for this channel identically.
func (s *Server) handleServiceSelect(c frameCarrier) {
	if len(c.payload) == 0 {
		s.nak(c.channelID, "empty service selection")
		return
	}
	creds := protocol.DecodeCredentials(c.payload)
	if _, err := s.handlers.Lookup(creds.Kind); err != nil {
		s.nak(c.channelID, err.Error())
		return
	}
	s.mu.Lock()
	s.chanKind[c.channelID] = creds.Kind
	s.chanCreds[c.channelID] = creds
	s.mu.Unlock()
	s.ack(c.channelID)
}

func (s *Server) handlePREQ(c frameCarrier) {
	activeID := c.channelID

	s.mu.Lock()
	kind, ok := s.chanKind[activeID]
	creds := s.chanCreds[activeID]
	s.mu.Unlock()
	if !ok {
		s.nak(activeID, "no service selected on this channel")
		return
	}

	h, err := s.handlers.Lookup(kind)
	if err != nil {
		s.nak(activeID, err.Error())
		return
	}
	okResult, errText := h.Handle(c.payload, creds, func(chunk []byte) {
		wire, ferr := s.framer.Frame(protocol.TagDATA, chunk)
		if ferr != nil {
			return
		}
		s.tr.Send(activeID, wire)
	})
	if okResult {
		s.ack(activeID)
	} else {
		s.nak(activeID, errText)
	}
}

func (s *Server) ack(channelID uint32) {
	wire, err := s.framer.Frame(protocol.TagACK, nil)
	if err != nil {
		return
	}
	s.tr.Send(channelID, wire)
}

func (s *Server) nak(channelID uint32, text string) {
	wire, err := s.framer.Frame(protocol.TagNAK, []byte(text))
	if err != nil {
		return
	}
	s.tr.Send(channelID, wire)
}
