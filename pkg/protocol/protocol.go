// Package protocol implements the wire framing for MDC packets: a single
// tag byte followed by a payload, the whole thing passed through a
// pluggable compress.Codec before it ever touches a transport.
package protocol

import (
	"github.com/pdsmart/mdc/pkg/compress"
)

// Tag identifies the kind of a packet.
type Tag byte

const (
	TagACK    Tag = 'A'
	TagABORT  Tag = 'B'
	TagCHANGE Tag = 'C'
	TagDATA   Tag = 'D'
	TagEXIT   Tag = 'E'
	TagINIT   Tag = 'I'
	TagNAK    Tag = 'N'
	TagPREQ   Tag = 'P'
)

func (t Tag) String() string {
	return string(byte(t))
}

// Default is the codec name passed to NewFramer when none is configured.
const Default = compress.Default

// Framer compresses/decompresses framed packets using a single codec.
type Framer struct {
	codec compress.Codec
}

// NewFramer builds a Framer around the named codec (see pkg/compress.New).
func NewFramer(codecName string) (*Framer, error) {
	c, err := compress.New(codecName)
	if err != nil {
		return nil, err
	}
	return &Framer{codec: c}, nil
}

// Frame tags the payload and compresses the result for transport.
func (f *Framer) Frame(tag Tag, payload []byte) ([]byte, error) {
	raw := make([]byte, 1+len(payload))
	raw[0] = byte(tag)
	copy(raw[1:], payload)
	return f.codec.Compress(raw)
}

// Unframe decompresses a wire buffer and splits it into tag and payload.
func (f *Framer) Unframe(wire []byte) (Tag, []byte, error) {
	raw, err := f.codec.Decompress(wire)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) == 0 {
		return 0, nil, ErrDecode
	}
	return Tag(raw[0]), raw[1:], nil
}

// IsOOB reports whether a decompressed packet is one of the out-of-band
// control packets (ABORT/EXIT) that bypass the server's FIFO entirely.
//
// The EXIT packet's length is ambiguous in the original implementation
// this protocol is based on (some callers send a bare tag byte, others
// pad it to two bytes); both are accepted here rather than "fixed",
// per the design note preserving that behavior.
func IsOOB(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	switch Tag(raw[0]) {
	case TagABORT:
		return len(raw) == 1
	case TagEXIT:
		return len(raw) == 1 || len(raw) == 2
	default:
		return false
	}
}
