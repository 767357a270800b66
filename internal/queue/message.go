package queue

import "encoding/json"

// ChangeEvent is the shape of a change-notification message the processor
// dispatches: an operation identifier, the id of the affected record, and
// the time of the change.
type ChangeEvent struct {
	Operation string          `json:"operation"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// parseChangeEvent validates a queued message against the expected shape.
// It fails closed: anything that is not JSON carrying all three required
// fields is rejected.
func parseChangeEvent(message string) (ChangeEvent, bool) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(message), &ev); err != nil {
		return ChangeEvent{}, false
	}
	if ev.Operation == "" || ev.ID == "" || ev.Timestamp == "" {
		return ChangeEvent{}, false
	}
	return ev, true
}
