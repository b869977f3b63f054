package channel

import (
	"fmt"
	"sync"
)

// ErrDuplicateChannel is returned by Registry.Insert when the id is
// already present.
var ErrDuplicateChannel = fmt.Errorf("channel: duplicate channel id")

// ErrNotFound is returned by Registry.Lookup/Remove for an unknown id.
var ErrNotFound = fmt.Errorf("channel: not found")

// Registry is the process-wide table of open channels, keyed by the id
// the transport assigned at connect time. Guarded by a single mutex, the
// same discipline as the teacher's BusManager listener table.
type Registry struct {
	mu       sync.Mutex
	channels map[uint32]*Channel
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[uint32]*Channel)}
}

// Insert adds a new channel record.
func (r *Registry) Insert(ch *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch.ID]; ok {
		return ErrDuplicateChannel
	}
	r.channels[ch.ID] = ch
	return nil
}

// Lookup finds a channel by id.
func (r *Registry) Lookup(id uint32) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ch, nil
}

// Remove deletes a channel record.
func (r *Registry) Remove(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[id]; !ok {
		return ErrNotFound
	}
	delete(r.channels, id)
	return nil
}

// Each calls fn for every channel currently registered. Used only by
// shutdown teardown, never on the hot path.
func (r *Registry) Each(fn func(*Channel)) {
	r.mu.Lock()
	ids := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		ids = append(ids, ch)
	}
	r.mu.Unlock()
	for _, ch := range ids {
		fn(ch)
	}
}

// Len reports how many channels are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
