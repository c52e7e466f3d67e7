// Package snapshot defines the durable session projection and its versioned
// binary codec.
//
// The projection is deliberately narrower than the in-memory session: loading
// flags and validator read models are never persisted. The wire schema is
// versioned independently of the runtime shape so old snapshots keep decoding
// after the Manager evolves.
//
// # What this package must NOT do
//
//   - Access storage or perform any I/O.
//   - Import authsession (the root package maps to and from Projection).
package snapshot
