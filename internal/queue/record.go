package queue

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// State is the delivery state of a queue entry.
type State int8

const (
	// StatePending entries are awaiting delivery; the only state a fetch
	// can return.
	StatePending State = 0
	// StateProcessed entries were acknowledged. Terminal.
	StateProcessed State = 1
	// StateDead entries exhausted their retry budget. Terminal; requires
	// out-of-band remediation.
	StateDead State = -1
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessed:
		return "processed"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition may leave this state.
func (s State) Terminal() bool { return s != StatePending }

// Entry is one durable queue record.
type Entry struct {
	// ID is assigned at insertion and orders delivery within the queue.
	ID    uint64 `msgpack:"id"`
	Queue string `msgpack:"queue"`
	// Message is the payload, JSON-serialized by convention.
	Message     string `msgpack:"message"`
	CreatedAtMs int64  `msgpack:"created_at_ms"`
	State       State  `msgpack:"state"`
	// Attempts counts failed deliveries so far. It only increases.
	Attempts    uint32 `msgpack:"attempts"`
	MaxAttempts uint32 `msgpack:"max_attempts"`
	// LastError holds the most recent failure message, overwritten on each
	// failure.
	LastError string `msgpack:"last_error,omitempty"`
}

// encodeEntry serializes an entry for storage.
func encodeEntry(e *Entry) ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("queue: encode entry %d: %w", e.ID, err)
	}
	return b, nil
}

// decodeEntry deserializes a stored entry.
func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("queue: decode entry: %w", err)
	}
	return e, nil
}
