package outbox

import "time"

const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Message is an outbox row persisted inside the same transaction as the state
// change it describes. The relay publishes pending rows to the bus in
// Sequence order, which follows commit order within one writer.
type Message struct {
	Sequence     int64
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}
