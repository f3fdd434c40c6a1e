package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

type Event interface {
	EventType() string
}

// Envelope is the transport wrapper put on the wire for every domain event.
type Envelope struct {
	EventType string          `json:"eventType"`
	EventID   string          `json:"eventId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps event with a fresh eventId. Two calls for the same
// domain fact produce two different ids.
func NewEnvelope(event Event, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event.EventType(), err)
	}

	return Envelope{
		EventType: event.EventType(),
		EventID:   uuid.NewString(),
		Timestamp: now.UTC(),
		Payload:   payload,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
