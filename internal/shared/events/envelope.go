package events

import "time"

// Envelope is the canonical notification shape emitted by recovery vaults.
// One envelope is written to the outbox per state transition and relayed to
// the bus by the worker process.
type Envelope struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SourceService  string    `json:"source_service"`
	OccurredAtUTC  time.Time `json:"occurred_at_utc"`
	VaultID        string    `json:"vault_id"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	PayloadVersion int       `json:"payload_version"`
	Payload        any       `json:"payload"`
}
