// Package client implements the MDC client engine: create/change service,
// send-request, get-result/status, and close-service, each expressed as a
// deadline-bounded poll loop over the per-channel state machine in
// internal/channel — the same shape as the teacher's SDO client busy-wait
// methods (ReadRaw/WriteRaw) in pkg/sdo/client.go.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pdsmart/mdc/internal/channel"
	"github.com/pdsmart/mdc/pkg/protocol"
	"github.com/pdsmart/mdc/pkg/transport"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
)

// Client is the process-wide client handle. A single Client serializes
// its channel operations (CreateService, ChangeService, SendRequest,
// GetStatus, GetResult, CloseService) behind one mutex, mirroring the
// original's "process-wide lock around every public API call" concurrency
// model. Start, End and SetTimeout do not take that mutex.
type Client struct {
	mu sync.Mutex

	registry *channel.Registry
	sess     *session
	framer   *protocol.Framer
	tr       transport.Transport
	log      logrus.FieldLogger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithCodec selects the compress.Codec used for the wire envelope
// (default "lz4").
func WithCodec(name string) Option {
	return func(c *Client) {
		f, err := protocol.NewFramer(name)
		if err == nil {
			c.framer = f
		}
	}
}

// WithTransport injects a pre-built transport.Transport, bypassing the
// name-based registry. Tests use this to wire a mock.Pair() half directly.
func WithTransport(tr transport.Transport) Option {
	return func(c *Client) { c.tr = tr }
}

// New builds a Client over the named transport ("tcp" or "mock").
func New(transportName string, opts ...Option) (*Client, error) {
	tr, err := transport.New(transportName)
	if err != nil {
		return nil, err
	}
	framer, err := protocol.NewFramer(protocol.Default)
	if err != nil {
		return nil, err
	}
	c := &Client{
		registry: channel.NewRegistry(),
		sess:     newSession(),
		framer:   framer,
		tr:       tr,
		log:      logrus.StandardLogger(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start begins the background receive loop. Mirrors MDC_Start.
func (c *Client) Start() error {
	c.wg.Add(1)
	go c.recvLoop()
	c.log.Debug("[CLIENT] started")
	return nil
}

// End tears down every open channel in parallel (golang.org/x/sync/errgroup,
// the same dependency the rewrite pulls in from the storage-domain
// examples for fan-out teardown) and stops the receive loop. Mirrors
// MDC_End.
func (c *Client) End() error {
	close(c.stopCh)
	c.wg.Wait()

	var g errgroup.Group
	c.registry.Each(func(ch *channel.Channel) {
		id := ch.ID
		g.Go(func() error {
			return c.closeChannel(id)
		})
	})
	err := g.Wait()
	c.log.Debug("[CLIENT] stopped")
	return err
}

// SetTimeout configures one of "NEW_SERVICE", "SERVICE_REQUEST", or
// "SEND_REQUEST" in milliseconds. Mirrors MDC_SetTimeout.
func (c *Client) SetTimeout(name string, ms uint32) error {
	d := time.Duration(ms) * time.Millisecond
	c.sess.mu.Lock()
	defer c.sess.mu.Unlock()
	switch name {
	case "NEW_SERVICE":
		c.sess.newServiceTimeout = d
	case "SERVICE_REQUEST":
		c.sess.serviceReqTimeout = d
	case "SEND_REQUEST":
		c.sess.sendRequestTimeout = d
	default:
		return fmt.Errorf("client: unknown timeout %q", name)
	}
	return nil
}

// CreateService connects to addr, selects a back-end service kind with
// the given credentials, and blocks until the server ACKs or NAKs the
// selection. The connect is bounded by the new-service timeout and the
// wait for the selection reply by the service-request timeout. Mirrors
// MDC_CreateService.
func (c *Client) CreateService(addr string, creds Credentials, sink channel.DataSink) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.sess.newServiceTimeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	id, err := c.connectPoll(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrNoDaemon, err)
	}

	ch := channel.NewChannel(id, sink)
	if err := c.registry.Insert(ch); err != nil {
		return 0, err
	}
	if err := ch.BeginMakingConn(); err != nil {
		return 0, err
	}
	if err := ch.BeginServiceRequest(); err != nil {
		return 0, err
	}
	c.sess.setPendingServiceChannel(id)

	if err := c.sendInit(id, creds); err != nil {
		return 0, err
	}

	if err := c.waitServiceReply(ch); err != nil {
		c.registry.Remove(id)
		return 0, err
	}
	return id, nil
}

// ChangeService re-selects the back-end service on an already-open
// channel. Mirrors MDC_ChangeService.
func (c *Client) ChangeService(channelID uint32, creds Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.registry.Lookup(channelID)
	if err != nil {
		return err
	}
	if err := ch.BeginChangeService(); err != nil {
		return err
	}
	c.sess.setPendingServiceChannel(channelID)
	if err := c.sendChange(channelID, creds); err != nil {
		return err
	}
	return c.waitServiceReply(ch)
}

// SendRequest sends a PREQ payload on an idle channel. It does not wait
// for completion; poll GetStatus/GetResult. Mirrors MDC_SendRequest.
func (c *Client) SendRequest(channelID uint32, request []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.registry.Lookup(channelID)
	if err != nil {
		return err
	}
	if err := ch.BeginSendRequest(); err != nil {
		return err
	}
	wire, err := c.framer.Frame(protocol.TagPREQ, request)
	if err != nil {
		return err
	}
	c.log.Debugf("[CLIENT][TX][x%x] PREQ | %d bytes", channelID, len(request))
	return c.tr.Send(channelID, wire)
}

// GetStatus reports whether the outstanding send-request has completed,
// without blocking. Mirrors MDC_GetStatus.
func (c *Client) GetStatus(channelID uint32) (complete bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.registry.Lookup(channelID)
	if err != nil {
		return false, err
	}
	return ch.State() == channel.StateSendRequestComplete, nil
}

// GetResult blocks until the outstanding send-request completes or the
// send-request timeout elapses, then returns the outcome and re-idles the
// channel. Mirrors MDC_GetResult.
func (c *Client) GetResult(channelID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.registry.Lookup(channelID)
	if err != nil {
		return err
	}
	// A channel not currently InSendRequest or SendRequestComplete has no
	// outstanding send-request to wait for: return BadContext immediately
	// rather than blocking for the full timeout and returning Fail.
	if err := ch.RequireState(channel.StateInSendRequest, channel.StateSendRequestComplete); err != nil {
		return err
	}
	deadline := time.Now().Add(c.sess.sendRequestTimeout)
	for time.Now().Before(deadline) {
		if ch.State() == channel.StateSendRequestComplete {
			result := ch.LastResult()
			if rerr := ch.Reidle(); rerr != nil {
				return rerr
			}
			return result
		}
		time.Sleep(protocol.SendRequestQuantum)
	}
	return protocol.ErrFail
}

// CloseService tears down one channel: it sends a best-effort single-byte
// EXIT packet, then removes the channel record and releases the
// transport. Mirrors MDC_CloseService.
func (c *Client) CloseService(channelID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeChannel(channelID)
}

// closeChannel does the EXIT-send/remove/release work shared by
// CloseService and End(). It touches only the named channel's registry
// entry and transport record, both independently safe for concurrent use
// across distinct channel ids, so End() calls it directly from its
// errgroup goroutines without holding c.mu.
func (c *Client) closeChannel(channelID uint32) error {
	c.sendExit(channelID)
	if err := c.registry.Remove(channelID); err != nil {
		return err
	}
	return c.tr.Release(channelID)
}

// sendInit frames and sends the initial service-selection packet. Mirrors
// the original's "frame(INIT, service-details) and send" on first connect;
// a subsequent re-selection on an already-open channel uses sendChange
// (TagCHANGE) instead, per the wire-tags table naming the two distinctly.
func (c *Client) sendInit(channelID uint32, creds Credentials) error {
	wire, err := c.framer.Frame(protocol.TagINIT, creds.Encode())
	if err != nil {
		return err
	}
	c.log.Debugf("[CLIENT][TX][x%x] INIT | kind=%c", channelID, creds.Kind)
	return c.tr.Send(channelID, wire)
}

func (c *Client) sendChange(channelID uint32, creds Credentials) error {
	wire, err := c.framer.Frame(protocol.TagCHANGE, creds.Encode())
	if err != nil {
		return err
	}
	c.log.Debugf("[CLIENT][TX][x%x] CHANGE | kind=%c", channelID, creds.Kind)
	return c.tr.Send(channelID, wire)
}

// sendExit frames and sends the best-effort single-byte EXIT packet close_service
// transmits before removing a channel's record.
func (c *Client) sendExit(channelID uint32) {
	wire, err := c.framer.Frame(protocol.TagEXIT, nil)
	if err != nil {
		return
	}
	c.log.Debugf("[CLIENT][TX][x%x] EXIT", channelID)
	_ = c.tr.Send(channelID, wire)
}

func (c *Client) waitServiceReply(ch *channel.Channel) error {
	deadline := time.Now().Add(c.sess.serviceReqTimeout)
	for time.Now().Before(deadline) {
		switch ch.State() {
		case channel.StateIdle:
			c.sess.clearPendingServiceChannel(ch.ID)
			// A rejected change-service also re-idles the channel; the
			// recorded reply tag tells the two outcomes apart.
			if c.sess.lastReplyTag() == protocol.TagNAK {
				return fmt.Errorf("%w: %s", protocol.ErrServiceNak, ch.Nak())
			}
			return nil
		case channel.StateIdleless:
			c.sess.clearPendingServiceChannel(ch.ID)
			return fmt.Errorf("%w: %s", protocol.ErrServiceNak, ch.Nak())
		}
		time.Sleep(protocol.ServiceReplyQuantum)
	}
	c.sess.clearPendingServiceChannel(ch.ID)
	return protocol.ErrNoDaemon
}

func (c *Client) connectPoll(ctx context.Context, addr string) (uint32, error) {
	type result struct {
		id  uint32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := c.tr.Connect(ctx, addr)
		ch <- result{id, err}
	}()
	ticker := time.NewTicker(protocol.ConnectPollQuantum)
	defer ticker.Stop()
	for {
		select {
		case r := <-ch:
			return r.id, r.err
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			// poll quantum observed, no-op: connection result delivered via ch
		}
	}
}

// recvLoop drains the transport and feeds DATA frames and service/send
// reply completions into the per-channel state machine.
func (c *Client) recvLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		raw, chID, ok, err := c.tr.Recv(100 * time.Millisecond)
		if !ok {
			if err != nil {
				c.log.Debugf("[CLIENT][RX] recv error: %v", err)
			}
			continue
		}
		tag, payload, err := c.framer.Unframe(raw)
		if err != nil {
			c.log.Warnf("[CLIENT][RX][x%x] malformed packet: %v", chID, err)
			continue
		}
		ch, err := c.registry.Lookup(chID)
		if err != nil {
			continue
		}
		c.dispatch(ch, tag, payload)
	}
}

// dispatch routes one received frame. A frame arriving on the session's
// pending-service-reply channel always short-circuits here regardless of
// tag: the tag is recorded as the last service-reply tag, the pending
// channel is cleared, and the frame is never handed to the general
// send-request path below, even if it isn't ACK/NAK.
func (c *Client) dispatch(ch *channel.Channel, tag protocol.Tag, payload []byte) {
	if c.sess.isPendingServiceChannel(ch.ID) {
		c.sess.recordServiceReplyTag(ch.ID, tag)
		switch tag {
		case protocol.TagACK:
			if ch.State() == channel.StateInServiceRequest {
				ch.CompleteServiceRequest(true)
			} else {
				ch.CompleteChangeService()
			}
		case protocol.TagNAK:
			ch.SetNak(string(payload))
			if ch.State() == channel.StateInServiceRequest {
				ch.CompleteServiceRequest(false)
			} else {
				ch.CompleteChangeService()
			}
		default:
			c.log.Debugf("[CLIENT][RX][x%x] tag %c short-circuited on pending service reply", ch.ID, byte(tag))
		}
		return
	}
	switch tag {
	case protocol.TagDATA:
		ch.DeliverData(payload)
	case protocol.TagACK:
		ch.CompleteSendRequest(nil)
	case protocol.TagNAK:
		ch.SetNak(string(payload))
		ch.CompleteSendRequest(&protocol.NakError{Text: string(payload)})
	case protocol.TagABORT:
		ch.SetNak("aborted")
	default:
		c.log.Debugf("[CLIENT][RX][x%x] unexpected tag %c", ch.ID, byte(tag))
	}
}
