package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// AliasPrefix is the discriminator convention for domain events stored in the
// outbox: "Event:<EventName>".
const AliasPrefix = "Event:"

// ErrUnknownType is returned when a message discriminator has no registered
// decoder. Retrying such a message cannot succeed.
var ErrUnknownType = errors.New("unknown message type")

// Decoder turns a serialized payload back into a concrete event.
type Decoder func(data []byte) (Event, error)

// Registry maps message type discriminators to payload decoders. It is
// populated once at startup; a lookup miss means the message cannot be
// delivered by this build of the service.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register binds a decoder to a literal discriminator.
func (r *Registry) Register(discriminator string, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[discriminator] = dec
}

// RegisterEvent binds a decoder under the Event:<name> alias convention.
func (r *Registry) RegisterEvent(name string, dec Decoder) {
	r.Register(AliasPrefix+name, dec)
}

// Decode resolves the discriminator and deserializes the payload.
func (r *Registry) Decode(discriminator string, data []byte) (Event, error) {
	r.mu.RLock()
	dec, ok := r.decoders[discriminator]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, discriminator)
	}

	evt, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode %q payload: %w", discriminator, err)
	}
	return evt, nil
}

// RegisterJSON registers a JSON decoder for the concrete event type T under
// its own event name.
func RegisterJSON[T Event](r *Registry) {
	var zero T
	r.RegisterEvent(zero.EventName(), func(data []byte) (Event, error) {
		var evt T
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	})
}
