package protocol

import "errors"

// Error return codes, mirroring the original MDC_OK/MDC_FAIL family.
const (
	OK = 0
)

var (
	// ErrFail is a generic, unclassified failure (MDC_FAIL, -1).
	ErrFail = errors.New("mdc: operation failed")
	// ErrNoDaemon means no server was reachable (MDC_NODAEMON, -2).
	ErrNoDaemon = errors.New("mdc: no daemon")
	// ErrServiceNak means the server rejected a service selection (MDC_SERVICENAK, -3).
	ErrServiceNak = errors.New("mdc: service request rejected")
	// ErrBadContext means the call was illegal for the channel's current state (MDC_BADCONTEXT, -4).
	ErrBadContext = errors.New("mdc: bad context for channel state")
	// ErrDecode means a received packet could not be decompressed/framed.
	ErrDecode = errors.New("mdc: malformed packet")
)

// NakError carries the NAK payload text returned by the server in
// response to a send-request (MDC_SNDREQNAK, -5).
type NakError struct {
	Text string
}

func (e *NakError) Error() string {
	if e.Text == "" {
		return "mdc: send-request rejected"
	}
	return "mdc: send-request rejected: " + e.Text
}

// MemoryExhaustedCode is the 5-character error-code prefix the server
// uses for out-of-memory NAK text, carried over from the original
// implementation's MDC_EMSG_MEMORY constant.
const MemoryExhaustedCode = "M0000"
