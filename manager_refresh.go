package authsession

import (
	"context"
	"errors"
)

// pendingRefresh is the shared handle later callers attach to instead of
// starting a second network operation. pair and err are written exactly once,
// before done is closed.
type pendingRefresh struct {
	done chan struct{}
	pair TokenPair
	err  error
}

// Refresh exchanges the refresh token for a new token pair and installs it.
//
// Concurrent calls collapse: while one exchange is in flight, every other
// caller awaits the same outcome, so N simultaneous calls perform exactly one
// network operation. An explicit rejection of the refresh token is fatal and
// terminates the session; transport failures are returned to the caller and
// retried on its normal cadence.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
func (m *Manager) Refresh(ctx context.Context) (TokenPair, error) {
	if m == nil || m.authority == nil {
		return TokenPair{}, ErrManagerNotReady
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return TokenPair{}, ErrManagerClosed
	}
	if !m.authenticatedLocked() || m.tokens.Refresh == "" {
		err := m.notAuthenticatedErrLocked()
		m.mu.Unlock()
		return TokenPair{}, err
	}
	if p := m.pending; p != nil {
		m.metrics.Inc(MetricRefreshCollapsed)
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.pair, p.err
		case <-ctx.Done():
			return TokenPair{}, ctx.Err()
		}
	}

	p := &pendingRefresh{done: make(chan struct{})}
	m.pending = p
	gen := m.generation
	refreshToken := m.tokens.Refresh
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.config.Refresh.Timeout)
	pair, err := m.authority.Refresh(cctx, refreshToken)
	cancel()

	m.mu.Lock()
	m.pending = nil
	switch {
	case m.closed:
		pair, err = TokenPair{}, ErrManagerClosed
	case gen != m.generation:
		// The session was cleared or replaced while the exchange was in
		// flight. The result must not resurrect it.
		m.metrics.Inc(MetricStaleResultDiscarded)
		pair, err = TokenPair{}, ErrSessionInvalid
	case err == nil:
		m.installTokensLocked(pair)
		m.metrics.Inc(MetricRefreshSuccess)
	case errors.Is(err, ErrRefreshRejected):
		m.metrics.Inc(MetricRefreshRejected)
		m.forceExpireLocked("refresh token rejected by authority")
	default:
		m.metrics.Inc(MetricRefreshFailure)
	}
	m.mu.Unlock()

	p.pair, p.err = pair, err
	close(p.done)
	return pair, err
}

// renewFired is the silent-refresh timer callback, scheduled at
// expiresAt - Refresh.Lead.
func (m *Manager) renewFired(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.generation || !m.authenticatedLocked() {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// Failure policy lives inside Refresh; a transient miss here is retried
	// by the validation cadence learning a new expiry.
	_, _ = m.Refresh(context.Background())
}
