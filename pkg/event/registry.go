package event

import (
	"encoding/json"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
)

type decodeFunc func(raw json.RawMessage) (Event, error)

// Registry maps an eventType tag to the concrete payload type used to decode it.
type Registry struct {
	decoders map[string]decodeFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]decodeFunc)}
}

func Register[T Event](r *Registry) {
	var zero T

	r.decoders[zero.EventType()] = func(raw json.RawMessage) (Event, error) {
		var e T
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}

		return e, nil
	}
}

func (r *Registry) Known(eventType string) bool {
	_, ok := r.decoders[eventType]
	return ok
}

// Decode parses an envelope and its payload. The returned event is a value
// of the registered type, so consumers can type-switch on it.
func (r *Registry) Decode(data []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	decode, ok := r.decoders[env.EventType]
	if !ok {
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}

	evt, err := decode(env.Payload)
	if err != nil {
		return env, nil, fmt.Errorf("failed to decode %s payload: %w", env.EventType, err)
	}

	return env, evt, nil
}

// NewDomainRegistry returns a registry with every event the services exchange.
func NewDomainRegistry() *Registry {
	r := NewRegistry()

	Register[domain.OrderCreatedEvent](r)
	Register[domain.StockDecreasedEvent](r)
	Register[domain.StockIncreasedEvent](r)
	Register[domain.LikeAddedEvent](r)
	Register[domain.LikeRemovedEvent](r)
	Register[domain.PaymentSuccessEvent](r)
	Register[domain.PaymentFailureEvent](r)
	Register[domain.ProductViewedEvent](r)

	return r
}
