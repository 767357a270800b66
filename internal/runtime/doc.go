// Package runtime wires storage, KV tables, the write queue, and the queue
// processor into one explicitly-owned application context.
//
// The Runtime exclusively owns the physical Pebble handle: it is created
// once at startup, threaded through request handlers and the background
// processor by parameter passing (never via globals), and closed once on
// shutdown. Close stops the processor before releasing the handle so no
// timer tick runs against a closed store.
package runtime
