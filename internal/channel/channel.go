// Package channel implements the per-channel state machine and the
// process-wide channel registry used by the client engine.
//
// The registry mirrors the mutex-guarded, id-indexed subscriber table the
// teacher repo uses for its CAN bus listeners: one map, one mutex, insert
// by id, remove by id.
package channel

import (
	"fmt"
	"sync"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// State is the legal set of per-channel states.
type State uint8

const (
	StateIdleless State = iota
	StateMakingConn
	StateInServiceRequest
	StateIdle
	StateInChangeService
	StateInSendRequest
	StateSendRequestComplete
)

func (s State) String() string {
	switch s {
	case StateIdleless:
		return "idleless"
	case StateMakingConn:
		return "making-conn"
	case StateInServiceRequest:
		return "in-service-request"
	case StateIdle:
		return "idle"
	case StateInChangeService:
		return "in-change-service"
	case StateInSendRequest:
		return "in-send-request"
	case StateSendRequestComplete:
		return "send-request-complete"
	default:
		return "unknown"
	}
}

// DataSink receives DATA frames asynchronously delivered for a channel.
type DataSink func(channelID uint32, payload []byte)

// Channel is one client-side channel record.
type Channel struct {
	mu sync.Mutex

	ID    uint32
	state State
	sink  DataSink

	lastSendRequestErr error
	nakBuf             [protocol.MaxErrMsgLen]byte
	nakLen             int
}

// NewChannel builds a channel in the idleless state.
func NewChannel(id uint32, sink DataSink) *Channel {
	return &Channel{ID: id, state: StateIdleless, sink: sink}
}

// State returns the channel's current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions unconditionally; callers must have already
// validated the transition.
func (c *Channel) setState(s State) {
	c.state = s
}

// RequireState returns ErrBadContext unless the channel is currently in
// one of the allowed states.
func (c *Channel) RequireState(allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: channel %d in state %s", protocol.ErrBadContext, c.ID, c.state)
}

// BeginMakingConn moves Idleless -> MakingConn.
func (c *Channel) BeginMakingConn() error {
	return c.transition(StateIdleless, StateMakingConn)
}

// BeginServiceRequest moves MakingConn -> InServiceRequest.
func (c *Channel) BeginServiceRequest() error {
	return c.transition(StateMakingConn, StateInServiceRequest)
}

// CompleteServiceRequest moves InServiceRequest -> Idle on ACK, or back to
// Idleless on NAK/failure (the channel must be recreated).
func (c *Channel) CompleteServiceRequest(ok bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInServiceRequest {
		return fmt.Errorf("%w: channel %d in state %s", protocol.ErrBadContext, c.ID, c.state)
	}
	if ok {
		c.setState(StateIdle)
	} else {
		c.setState(StateIdleless)
	}
	return nil
}

// BeginChangeService moves Idle -> InChangeService.
func (c *Channel) BeginChangeService() error {
	return c.transition(StateIdle, StateInChangeService)
}

// CompleteChangeService moves InChangeService -> Idle. It is used for both
// an accepted and a rejected change-service: a rejected change leaves the
// previous service selected and the channel usable.
func (c *Channel) CompleteChangeService() error {
	return c.transition(StateInChangeService, StateIdle)
}

// BeginSendRequest moves Idle -> InSendRequest.
func (c *Channel) BeginSendRequest() error {
	return c.transition(StateIdle, StateInSendRequest)
}

// CompleteSendRequest moves InSendRequest -> SendRequestComplete and
// records the outcome for a subsequent GetResult/GetStatus call.
//
// The client's receive dispatch (Client.dispatch in pkg/client)
// disambiguates the dual meaning of tag 'A' (ACK) purely by
// channel identity: an ACK arriving while this channel is the session's
// pending-service-reply owner means "service selected"; an ACK arriving
// while this channel is InSendRequest means "send-request completed".
// Both meanings share the same wire tag in the original protocol and
// this implementation preserves that rather than introducing a new tag.
func (c *Channel) CompleteSendRequest(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInSendRequest {
		return fmt.Errorf("%w: channel %d in state %s", protocol.ErrBadContext, c.ID, c.state)
	}
	c.lastSendRequestErr = err
	c.setState(StateSendRequestComplete)
	return nil
}

// Reidle moves SendRequestComplete -> Idle, consuming the last result.
func (c *Channel) Reidle() error {
	return c.transition(StateSendRequestComplete, StateIdle)
}

// LastResult returns the recorded outcome of the most recent completed
// send-request.
func (c *Channel) LastResult() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSendRequestErr
}

// DeliverData invokes the sink for an asynchronously arrived DATA frame.
// Per Invariant 2, the sink fires only while the channel is actually
// InSendRequest; a DATA frame arriving in any other state is dropped.
func (c *Channel) DeliverData(payload []byte) {
	c.mu.Lock()
	sink := c.sink
	inSendRequest := c.state == StateInSendRequest
	c.mu.Unlock()
	if sink != nil && inSendRequest {
		sink(c.ID, payload)
	}
}

// SetNak records NAK text, truncated to MaxErrMsgLen like the original's
// bounded error buffer.
func (c *Channel) SetNak(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := copy(c.nakBuf[:], text)
	c.nakLen = n
}

// Nak returns the last recorded NAK text.
func (c *Channel) Nak() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.nakBuf[:c.nakLen])
}

func (c *Channel) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("%w: channel %d in state %s, expected %s", protocol.ErrBadContext, c.ID, c.state, from)
	}
	c.setState(to)
	return nil
}
