package authsession

// Expiry enforcer: a three-state machine (ACTIVE, WARNED, EXPIRED) driven by
// two timers scheduled against the known expiry instant. Expiry firing, or
// the validator reporting the session invalid, is the only forced-termination
// path the rest of the system relies on.

// scheduleTimersLocked cancels and reschedules the warning, expiry, and
// silent-renewal timers from the current expiresAt. Callers set state before
// invoking it; a reschedule to a later instant therefore lands back in ACTIVE
// with fresh timers and no duplicate warning.
func (m *Manager) scheduleTimersLocked() {
	m.cancelTimersLocked()
	if !m.authenticatedLocked() || m.expiresAt.IsZero() {
		return
	}

	gen := m.generation
	now := m.clock.Now()

	warnAt := m.expiresAt.Add(-m.config.Expiry.WarningWindow)
	if warnAt.After(now) {
		m.cancelWarn = m.scheduler.ScheduleAt(warnAt, func() {
			m.warnFired(gen)
		})
	} else if m.state == StateActive {
		// Already inside the warning window.
		m.enterWarnedLocked()
	}

	m.cancelExpire = m.scheduler.ScheduleAt(m.expiresAt, func() {
		m.expireFired(gen)
	})

	if m.config.Refresh.AutoRefresh && m.tokens.Refresh != "" {
		renewAt := m.expiresAt.Add(-m.config.Refresh.Lead)
		if renewAt.After(now) {
			m.cancelRenew = m.scheduler.ScheduleAt(renewAt, func() {
				m.renewFired(gen)
			})
		}
	}
}

// cancelTimersLocked cancels the enforcer and renewal timers. Safe to call
// with none scheduled; each cancel func fires at most once.
func (m *Manager) cancelTimersLocked() {
	if m.cancelWarn != nil {
		m.cancelWarn()
		m.cancelWarn = nil
	}
	if m.cancelExpire != nil {
		m.cancelExpire()
		m.cancelExpire = nil
	}
	if m.cancelRenew != nil {
		m.cancelRenew()
		m.cancelRenew = nil
	}
}

func (m *Manager) enterWarnedLocked() {
	m.state = StateWarned
	m.metrics.Inc(MetricExpiryWarned)
	var userID string
	if m.identity != nil {
		userID = m.identity.ID
	}
	m.emit(KindExpiryWarning, "session expires soon", userID)
}

// warnFired is the warning-timer callback. It announces the closing window;
// it never extends the session. Extension only happens through an
// activity-triggered revalidation yielding a later expiry.
func (m *Manager) warnFired(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.generation || !m.authenticatedLocked() {
		return
	}
	if m.state != StateActive {
		return
	}
	m.enterWarnedLocked()
}

// expireFired is the expiry-timer callback. Expiry is definitional, not a
// transient error: no retries, unconditional termination.
func (m *Manager) expireFired(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.generation || !m.authenticatedLocked() {
		return
	}
	m.metrics.Inc(MetricExpiryFired)
	m.forceExpireLocked("session expired")
}

// forceExpireLocked transitions to EXPIRED and clears the session through the
// same atomic path explicit logout uses. The durable snapshot is purged so a
// restart cannot resurrect the terminated session.
func (m *Manager) forceExpireLocked(reason string) {
	if m.state == StateExpired && !m.authenticatedLocked() {
		return
	}
	var userID string
	if m.identity != nil {
		userID = m.identity.ID
	}
	m.clearSessionLocked(StateExpired)
	m.purgeLocked(nil)
	m.emit(KindForcedLogout, reason, userID)
}
