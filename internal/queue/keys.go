package queue

import (
	"encoding/binary"
	"fmt"
)

// queuePrefix returns the base prefix for a named queue.
// Format: wq/{queue}/
func queuePrefix(name string) string {
	return fmt.Sprintf("wq/%s/", name)
}

// metaKey returns the metadata key holding the last assigned sequence.
func metaKey(name string) []byte {
	return []byte(queuePrefix(name) + "meta")
}

// entryKey returns the record key for an entry.
// Format: wq/{queue}/e/{seq_be8}
func entryKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + "e/"
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// pendingKey returns the pending index key for an entry.
// Format: wq/{queue}/p/{seq_be8}
func pendingKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + "p/"
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// deadKey returns the dead-letter index key for an entry.
// Format: wq/{queue}/d/{seq_be8}
func deadKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + "d/"
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// pendingRange returns scan bounds covering the whole pending index.
func pendingRange(name string) ([]byte, []byte) {
	return indexRange(queuePrefix(name) + "p/")
}

// deadRange returns scan bounds covering the whole dead-letter index.
func deadRange(name string) ([]byte, []byte) {
	return indexRange(queuePrefix(name) + "d/")
}

// entryRange returns scan bounds covering all entry records.
func entryRange(name string) ([]byte, []byte) {
	return indexRange(queuePrefix(name) + "e/")
}

func indexRange(prefix string) ([]byte, []byte) {
	start := []byte(prefix)
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return start, end
}

// seqFromIndexKey extracts the sequence from a pending or dead index key.
func seqFromIndexKey(key []byte) (uint64, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(key)-8:]), true
}
