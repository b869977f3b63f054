// Package compress provides a pluggable compression envelope for MDC
// packets. Concrete codecs register themselves via blank import, the same
// registry shape the teacher repo uses for its CAN bus backends.
package compress

import "fmt"

// Codec compresses and decompresses whole packets. Implementations must
// always return a freshly allocated buffer: callers never need to worry
// about aliasing the input.
type Codec interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
}

// NewCodecFunc constructs a fresh Codec instance.
type NewCodecFunc func() Codec

var codecRegistry = make(map[string]NewCodecFunc)

// Register makes a codec constructor available under name. Called from an
// init() in each codec's own package.
func Register(name string, fn NewCodecFunc) {
	codecRegistry[name] = fn
}

// New builds a Codec by registered name.
func New(name string) (Codec, error) {
	fn, ok := codecRegistry[name]
	if !ok {
		return nil, fmt.Errorf("compress: unknown codec %q", name)
	}
	return fn(), nil
}

// Default is the codec name used when none is configured.
const Default = "lz4"
