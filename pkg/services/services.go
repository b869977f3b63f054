// Package services defines the opaque back-end service handler contract
// and a kind-byte registry, grounded on the same registry shape used by
// pkg/compress and pkg/transport.
package services

import (
	"fmt"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler processes one PREQ payload using the credentials selected for
// the channel's current service (see protocol.Credentials), optionally
// streaming zero or more DATA chunks through sink before returning.
type Handler interface {
	Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (ok bool, errText string)
}

// Registry maps a service kind byte (see pkg/protocol.Kind*) to a Handler.
type Registry struct {
	byKind map[byte]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[byte]Handler)}
}

// Register installs a handler for a service kind.
func (r *Registry) Register(kind byte, h Handler) {
	r.byKind[kind] = h
}

// Lookup finds a handler by kind byte.
func (r *Registry) Lookup(kind byte) (Handler, error) {
	h, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("services: no handler registered for kind %c", kind)
	}
	return h, nil
}
