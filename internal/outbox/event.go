// Package outbox persists checkout transactions as events and
// publishes them to kafka via a polling relay, so a broker outage
// never loses a completed checkout.
package outbox

import (
	"encoding/json"
	"time"
)

const EventTypeCartCheckedOut = "CartCheckedOut"

type Event struct {
	ID          int64
	AggregateID string // cart id, used as the kafka key for ordering
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
