// Package storage provides durable backends for the persisted session
// projection: an in-memory map for tests and ephemeral runs, an
// atomic-rename file store for single-machine clients, and a Redis store for
// clients that share infrastructure state.
//
// Every backend satisfies the root package's Storage contract: Get returns an
// error wrapping [ErrNotFound] for absent keys, and all faults are ordinary
// errors the caller may absorb.
package storage
