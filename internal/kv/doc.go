// Package kv implements the namespaced key-value tables backing the feed
// API's domain records (playlists, channels, playlist items).
//
// # Keyspace
//
// Each namespace is an isolated keyspace inside the shared Pebble handle:
//
//	ns/{namespace}/kv/{key} - record value (opaque string payload)
//
// Keys sort lexicographically, which makes prefix scans and cursor-paginated
// listing a single bounded iterator pass.
//
// # Contracts
//
//   - Put/Delete are idempotent upserts/removals.
//   - PutMultiple/DeleteMultiple commit as one batch: all entries become
//     visible together or not at all. On failure every key in the batch is
//     reported failed; callers must not assume partial application.
//   - List returns keys (not values) matching an optional prefix, ascending,
//     capped at a limit (default 1000). A full page sets IsComplete=false and
//     a Cursor equal to the last key; passing it back resumes strictly after
//     that key.
package kv
