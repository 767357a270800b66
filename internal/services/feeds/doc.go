// Package feeds is the domain glue between the HTTP surface and the storage
// engine: it writes feed records (playlists, channels, playlist items)
// through the namespaced KV tables and enqueues a change-notification event
// on the write queue as part of the same logical unit of work.
//
// Payload validation is the caller's concern; this service treats record
// values as opaque JSON documents. Listing supports an optional CEL filter
// evaluated against each record's decoded JSON value.
package feeds
