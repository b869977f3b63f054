package protocol

import "time"

// Field widths for the fixed, null-padded credential strings carried in
// a service-selection payload.
const (
	MaxUsernameLen = 20
	MaxPasswordLen = 20
	MaxServerLen   = 20
	MaxDBNameLen   = 20
	MaxErrMsgLen   = 1024
)

// Service kind tags, as carried in the first byte of a CHANGE payload.
const (
	KindSybase    byte = 'S'
	KindODBC      byte = 'O'
	KindFTP       byte = 'F'
	KindJava      byte = 'J'
	KindSysCmd    byte = 'C'
	KindAudio     byte = 'A'
)

// Default timeouts and service name, unchanged from the original spec.
const (
	DefaultServiceName         = "vdwd"
	DefaultNewServiceTimeout   = 30000 * time.Millisecond
	DefaultServiceReqTimeout   = 10000 * time.Millisecond
	DefaultSendRequestTimeout  = 5400000 * time.Millisecond
	DefaultKeepAlive           = 1000 * time.Millisecond
)

// Poll quanta used by the client engine's busy-wait loops.
const (
	ConnectPollQuantum  = 1 * time.Millisecond
	ServiceReplyQuantum = 10 * time.Millisecond
	SendRequestQuantum  = 10 * time.Millisecond
)
