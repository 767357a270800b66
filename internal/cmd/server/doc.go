// Package serverrun wires configuration, storage, the write-queue processor
// and the HTTP API into a running server process.
package serverrun
