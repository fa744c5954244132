package outbox

import "time"

// Message is an outbox row persisted alongside the state change that caused
// it. The worker relay publishes pending rows to the event bus and marks
// them published only after the broker accepts them.
type Message struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}
