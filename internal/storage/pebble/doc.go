// Package pebblestore wraps a single Pebble database handle for dp1-feed.
//
// The wrapper owns open/close of the physical handle and applies a uniform
// fsync policy to every commit. All other components (KV tables, the write
// queue) borrow the handle and must never close it.
//
// Durability is WAL-based: FsyncModeAlways syncs the WAL per commit,
// FsyncModeInterval lets Pebble group-commit within a window, and an
// in-memory store silently runs without durability, which is not an error.
package pebblestore
