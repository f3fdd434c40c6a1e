package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent is an envelope that could not be delivered right after commit
// (or a dead letter that could not reach its topic) waiting to be re-sent.
type OutboxEvent struct {
	Id            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	EventID       string          `db:"event_id"`
	Topic         string          `db:"topic"`
	MessageKey    string          `db:"message_key"`
	Payload       json.RawMessage `db:"payload"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
}
