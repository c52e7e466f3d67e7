// Package authsession manages the client-side authentication session lifecycle:
// credential state, durable persistence across restarts, silent token refresh,
// activity-driven revalidation, and warn-then-terminate expiry enforcement.
//
// The package is built around a single [Manager] constructed through [Builder.Build].
// The Manager is the only writer of session state; the validator, refresher,
// activity monitor, and expiry enforcer all read from it and funnel mutations
// through its entry points (Login, Logout, Refresh, UpdateIdentity).
//
// # Architecture boundaries
//
// authsession is the public surface. It exposes [Manager], [Builder], [Config],
// the [Authority], [Storage], and [Notifier] contracts, and value types
// (Identity, TokenPair, Validity, SessionSnapshot). Snapshot encoding lives in
// the snapshot sub-package, scheduling in schedule, token inspection in token,
// and storage backends in storage.
//
// # What this package must NOT do
//
//   - Render anything or depend on any UI lifecycle; notifications are emitted
//     as events through the configured sink, never drawn.
//   - Mint or verify token signatures; the authority owns token cryptography.
//   - Retain credentials after logout: clearing the session clears identity,
//     token pair, and expiry atomically, and purges the durable snapshot.
//
// # Failure policy
//
// Only authoritative rejections (invalid credentials, refresh rejected,
// validation reporting invalid) and expiry itself may transition the session to
// logged-out. Transient network failures and storage faults are absorbed where
// they are observed and surfaced only as stale-read signals and metrics.
package authsession
