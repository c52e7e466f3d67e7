// Package schedule provides the clock and timer capability the session
// manager depends on instead of the runtime's ambient timers.
//
// # Architecture boundaries
//
// This package owns time observation and one-shot timer scheduling. The expiry
// enforcer and activity monitor depend only on [Clock] and [Scheduler], so they
// run headlessly in tests against [Manual].
//
// # What this package must NOT do
//
//   - Import authsession or any of its sub-packages.
//   - Perform I/O or hold session state.
package schedule
