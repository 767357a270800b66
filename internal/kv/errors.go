package kv

import (
	"fmt"

	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = pebblestore.ErrNotFound

// DecodeError reports a stored value that does not match the requested
// structured decoding. It is surfaced to the caller, never silently
// defaulted: a corrupt record must be visible.
type DecodeError struct {
	Namespace string
	Key       string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kv: decode %s/%s: %v", e.Namespace, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
