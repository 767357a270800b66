package kv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/whistlegraph/dp1-feed/internal/namespace"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

// DefaultListLimit caps List pages when no explicit limit is given.
const DefaultListLimit = 1000

// Table is one namespaced key-value table. It borrows the shared DB handle
// and must not close it.
type Table struct {
	db        *pebblestore.DB
	namespace string
}

// OpenTable returns the table for a namespace, registering the namespace
// metadata on first use. Repeated opens against an existing namespace are
// not an error.
func OpenTable(db *pebblestore.DB, ns string) (*Table, error) {
	if _, err := namespace.Ensure(db, ns); err != nil {
		return nil, fmt.Errorf("kv: open table %q: %w", ns, err)
	}
	return &Table{db: db, namespace: ns}, nil
}

// Namespace returns the table's namespace name.
func (t *Table) Namespace() string { return t.namespace }

// Get returns the value for key, or ErrNotFound when absent.
func (t *Table) Get(key string) (string, error) {
	v, err := t.db.Get(recordKey(t.namespace, key))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// GetJSON decodes the stored value for key into dst. A value that is not
// valid JSON for dst yields a DecodeError.
func (t *Table) GetJSON(key string, dst any) error {
	v, err := t.db.Get(recordKey(t.namespace, key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return &DecodeError{Namespace: t.namespace, Key: key, Err: err}
	}
	return nil
}

// GetMultiple returns the values for the keys that are present; absent keys
// are omitted. An empty input returns an empty map without touching storage.
func (t *Table) GetMultiple(keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	for _, key := range keys {
		v, err := t.db.Get(recordKey(t.namespace, key))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[key] = string(v)
	}
	return out, nil
}

// Put upserts a single record.
func (t *Table) Put(key, value string) error {
	return t.db.Set(recordKey(t.namespace, key), []byte(value))
}

// PutMultiple upserts entries as one all-or-nothing batch and returns the
// keys that failed. On success the list is empty; on failure every key in
// the batch is reported, since the batch rolls back as a unit. A single
// entry is written as a plain Put.
func (t *Table) PutMultiple(entries map[string]string) ([]string, error) {
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		for k, v := range entries {
			if err := t.Put(k, v); err != nil {
				return []string{k}, err
			}
		}
		return nil, nil
	}

	b := t.db.NewBatch()
	defer b.Close()
	for k, v := range entries {
		if err := b.Set(recordKey(t.namespace, k), []byte(v), nil); err != nil {
			return allKeys(entries), err
		}
	}
	if err := t.db.CommitBatch(b); err != nil {
		return allKeys(entries), err
	}
	return nil, nil
}

// Delete removes a record. Absent keys are a no-op.
func (t *Table) Delete(key string) error {
	return t.db.Delete(recordKey(t.namespace, key))
}

// DeleteMultiple removes keys as one all-or-nothing batch, with the same
// failed-keys contract as PutMultiple.
func (t *Table) DeleteMultiple(keys []string) ([]string, error) {
	switch len(keys) {
	case 0:
		return nil, nil
	case 1:
		if err := t.Delete(keys[0]); err != nil {
			return []string{keys[0]}, err
		}
		return nil, nil
	}

	b := t.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(recordKey(t.namespace, k), nil); err != nil {
			return append([]string(nil), keys...), err
		}
	}
	if err := t.db.CommitBatch(b); err != nil {
		return append([]string(nil), keys...), err
	}
	return nil, nil
}

// ListOptions controls a List page.
type ListOptions struct {
	// Prefix restricts results to keys starting with it.
	Prefix string
	// Limit caps returned keys; DefaultListLimit when <= 0.
	Limit int
	// Cursor resumes strictly after this key (the Cursor of the prior page).
	Cursor string
}

// ListResult is one page of keys.
type ListResult struct {
	Keys []string
	// IsComplete reports that no further page exists. A full page leaves it
	// false even when the scan happens to be exhausted; the next page then
	// comes back empty and complete.
	IsComplete bool
	// Cursor is the last returned key when IsComplete is false.
	Cursor string
}

// List returns keys matching opts.Prefix in ascending order.
func (t *Table) List(opts ListOptions) (ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	lo, hi := keyRange(tablePrefix(t.namespace) + opts.Prefix)
	if opts.Cursor != "" {
		// Resume strictly after the cursor key.
		after := append(recordKey(t.namespace, opts.Cursor), 0x00)
		if string(after) > string(lo) {
			lo = after
		}
	}

	iter, err := t.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return ListResult{}, err
	}
	defer iter.Close()

	prefixLen := len(tablePrefix(t.namespace))
	keys := make([]string, 0, limit)
	for ok := iter.First(); ok && len(keys) < limit; ok = iter.Next() {
		keys = append(keys, string(iter.Key()[prefixLen:]))
	}

	res := ListResult{Keys: keys, IsComplete: true}
	if len(keys) == limit {
		res.IsComplete = false
		res.Cursor = keys[len(keys)-1]
	}
	return res, nil
}

func allKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return keys
}
