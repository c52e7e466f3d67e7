package authsession

import (
	"context"
	"fmt"
)

// Validate asks the authority whether the current session is still honored
// and updates the read model returned by [Manager.Validity].
//
// Policy: a transport failure retains the last known validity, marks it
// stale, and never forces logout. The authority answering valid=false is
// fatal and terminates the session through the expiry enforcer. A later
// server-reported expiry extends the session and reschedules the enforcer.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (m *Manager) Validate(ctx context.Context) (Validity, error) {
	if m == nil || m.authority == nil {
		return Validity{}, ErrManagerNotReady
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Validity{}, ErrManagerClosed
	}
	if !m.authenticatedLocked() {
		err := m.notAuthenticatedErrLocked()
		m.mu.Unlock()
		return Validity{}, err
	}
	gen := m.generation
	access := m.tokens.Access
	var userID string
	if m.identity != nil {
		userID = m.identity.ID
	}
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.config.Validation.Timeout)
	v, err := m.authority.Validate(cctx, access)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Validity{}, ErrManagerClosed
	}
	if gen != m.generation {
		m.metrics.Inc(MetricStaleResultDiscarded)
		return Validity{}, ErrSessionInvalid
	}

	if err != nil {
		m.validity.Stale = true
		m.metrics.Inc(MetricValidateStale)
		m.emit(KindValidityStale, "session validation unreachable, serving last known state", userID)
		return m.validity, fmt.Errorf("validate session: %w", err)
	}

	v.CheckedAt = m.clock.Now()
	v.Stale = false

	if !v.Valid {
		m.validity = v
		m.metrics.Inc(MetricValidateInvalid)
		m.forceExpireLocked("authority reports session invalid")
		return v, ErrSessionInvalid
	}

	m.validity = v
	m.metrics.Inc(MetricValidateSuccess)

	if !v.ExpiresAt.IsZero() && v.ExpiresAt.After(m.expiresAt) {
		m.expiresAt = v.ExpiresAt
		m.state = StateActive
		m.scheduleTimersLocked()
		m.metrics.Inc(MetricExpiryExtended)
	}
	m.persistLocked()
	return v, nil
}

// armValidationLocked schedules the next background validation tick.
func (m *Manager) armValidationLocked() {
	if m.closed {
		return
	}
	if m.cancelPoll != nil {
		m.cancelPoll()
	}
	at := m.clock.Now().Add(m.config.Validation.Interval)
	m.cancelPoll = m.scheduler.ScheduleAt(at, m.validationTick)
}

// validationTick runs one cadence step. The loop runs for the life of the
// Manager but only talks to the authority while authenticated.
func (m *Manager) validationTick() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.cancelPoll = nil
	m.armValidationLocked()
	authenticated := m.authenticatedLocked()
	m.mu.Unlock()

	if !authenticated {
		return
	}
	_, _ = m.Validate(context.Background())
}
