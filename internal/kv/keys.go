package kv

import "fmt"

// tablePrefix returns the base prefix for a namespace table.
// Format: ns/{namespace}/kv/
func tablePrefix(namespace string) string {
	return fmt.Sprintf("ns/%s/kv/", namespace)
}

// recordKey returns the storage key for a record.
// Format: ns/{namespace}/kv/{key}
func recordKey(namespace, key string) []byte {
	return []byte(tablePrefix(namespace) + key)
}

// keyRange returns inclusive lower and exclusive upper bounds for scanning
// all keys under prefix.
func keyRange(prefix string) ([]byte, []byte) {
	start := []byte(prefix)
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return start, end
}
