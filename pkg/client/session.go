package client

import (
	"sync"
	"time"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// session holds the process-wide client state the original spec describes
// as a single record (there is no comms-mode flag): link state, the channel currently
// making a connection (if any), the channel currently awaiting a service
// reply (if any, used to disambiguate the dual meaning of ACK tag 'A'),
// and the three configurable timeouts.
type session struct {
	mu sync.Mutex

	linkUp bool

	pendingConnChannel    uint32
	pendingServiceChannel uint32
	lastServiceReplyTag   protocol.Tag

	newServiceTimeout  time.Duration
	serviceReqTimeout  time.Duration
	sendRequestTimeout time.Duration
}

func newSession() *session {
	return &session{
		newServiceTimeout:  protocol.DefaultNewServiceTimeout,
		serviceReqTimeout:  protocol.DefaultServiceReqTimeout,
		sendRequestTimeout: protocol.DefaultSendRequestTimeout,
	}
}

func (s *session) setPendingServiceChannel(id uint32) {
	s.mu.Lock()
	s.pendingServiceChannel = id
	s.mu.Unlock()
}

func (s *session) isPendingServiceChannel(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingServiceChannel == id && id != 0
}

func (s *session) clearPendingServiceChannel(id uint32) {
	s.mu.Lock()
	if s.pendingServiceChannel == id {
		s.pendingServiceChannel = 0
	}
	s.mu.Unlock()
}

// recordServiceReplyTag short-circuits the pending-service-reply table:
// the tag of the frame that arrived on the pending channel is recorded as
// the last service-reply tag and the pending channel is cleared, per the
// "any received frame on the pending-service-reply channel short-circuits
// the table" rule. Called for every tag, not just ACK/NAK.
func (s *session) recordServiceReplyTag(id uint32, tag protocol.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingServiceChannel != id || id == 0 {
		return
	}
	s.lastServiceReplyTag = tag
	s.pendingServiceChannel = 0
}

// lastReplyTag returns the most recently recorded service-reply tag.
func (s *session) lastReplyTag() protocol.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServiceReplyTag
}
