package outbox

import "time"

type Status string

// An event is pending until a relay leases it, then either sent or back
// to pending: a dispatch failure requeues the row rather than parking it
// in a terminal state, so delivery retries until it succeeds.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
)

// Event is one durable row awaiting dispatch. For settlement events the
// aggregate id is the payment id, which keys the guaranteed-retry loop.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}
