// Package queue implements the durable, at-least-once write queue embedded
// in the feed storage engine.
//
// One physical table holds any number of named logical queues, partitioned
// by queue name. Entries are appended with a monotonically increasing id and
// delivered in id order. FetchPending is a peek, not a pop: an entry stays
// pending until a caller explicitly acknowledges it (MarkProcessed) or
// records a failure (MarkFailed). Failures increment an attempts counter;
// when attempts reaches the queue's ceiling the entry is dead-lettered and
// permanently excluded from fetching.
//
// # Keyspace
//
// All keys are prefixed with wq/{queue}/:
//
//	meta           - last assigned sequence (8B BE)
//	e/{seq_be8}    - entry record (msgpack)
//	p/{seq_be8}    - pending index (empty value)
//	d/{seq_be8}    - dead-letter index (empty value)
//
// The pending index makes "pending entries for this queue, ascending by id"
// a single bounded scan regardless of how many terminal entries the table
// holds.
//
// # Entry Lifecycle
//
//	Pending -> Pending    failure, attempts < maxAttempts
//	Pending -> Processed  success (terminal)
//	Pending -> Dead       failure, attempts reaches maxAttempts (terminal)
//
// No transition leaves a terminal state, and attempts only ever increases.
// Every multi-key mutation (append, ack, fail) commits as one batch so a
// concurrent reader never observes partial application.
//
// The queue targets a single consumer process. FetchPending does not lock
// rows; at-most-one-in-flight discipline comes from the Processor's tick
// guard.
package queue
