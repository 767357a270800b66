// Package namespace tracks metadata records for the logical KV namespaces
// (playlists, channels, playlist_items). Namespaces are isolated keyspaces;
// the same key in two namespaces refers to two independent records.
package namespace

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

// Meta holds namespace metadata.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

var nsMetaPrefix = []byte("nsmeta/")

func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// Ensure creates a namespace meta record if absent, returning the effective
// meta. Idempotent: repeated calls against an existing namespace return the
// existing record and are not an error.
func Ensure(db *pebblestore.DB, name string) (Meta, error) {
	if name == "" {
		return Meta{}, errors.New("namespace: name is required")
	}
	key := nsMetaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// corrupted record: fall through and rewrite
	}
	m := Meta{Name: name, CreatedAtMs: time.Now().UnixMilli()}
	bytes, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns all registered namespace metas in name order.
func List(db *pebblestore.DB) ([]Meta, error) {
	hi := append(append([]byte{}, nsMetaPrefix...), 0xFF)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: nsMetaPrefix, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Meta
	for ok := iter.First(); ok; ok = iter.Next() {
		var m Meta
		if err := json.Unmarshal(iter.Value(), &m); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}
