package authsession

import (
	"context"
	"time"
)

// RecordActivity feeds one user-interaction signal to the activity monitor.
// Every class of signal resets the idle timer; the class is tracked per
// session so consumers can tell a pointer-only kiosk from an interactive
// user. Activity observed during the warning window additionally requests a
// revalidation, which is the only path that can extend the session. The
// monitor never logs the user out itself.
func (m *Manager) RecordActivity(kind ActivityKind) {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.closed || !m.authenticatedLocked() {
		m.mu.Unlock()
		return
	}
	m.lastActivity = m.clock.Now()
	if kind < activityKindCount {
		m.lastActivityKind = kind
		m.activityCounts[kind]++
	}
	m.armIdleLocked()
	revalidate := m.state == StateWarned
	m.mu.Unlock()

	if revalidate {
		m.metrics.Inc(MetricActivityRevalidation)
		m.revalidate()
	}
}

// SetVisibility records a page-visibility transition. Regaining visibility
// requests a revalidation so a tab parked in the background learns promptly
// whether its session survived.
func (m *Manager) SetVisibility(visible bool) {
	if m == nil {
		return
	}

	m.mu.Lock()
	regained := visible && !m.visible
	m.visible = visible
	should := regained &&
		m.config.Activity.RevalidateOnVisible &&
		!m.closed &&
		m.authenticatedLocked()
	m.mu.Unlock()

	if should {
		m.metrics.Inc(MetricVisibilityRevalidation)
		m.revalidate()
	}
}

// LastActivity returns the instant of the most recent observed signal; zero
// when none has been recorded.
func (m *Manager) LastActivity() time.Time {
	if m == nil {
		return time.Time{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// LastActivityKind returns the class of the most recent observed signal.
// Login seeds it with [ActivityPointer].
func (m *Manager) LastActivityKind() ActivityKind {
	if m == nil {
		return ActivityPointer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivityKind
}

// ActivityCounts returns how many signals of each class have been observed
// for the current session. Counts reset on login.
func (m *Manager) ActivityCounts() map[ActivityKind]uint64 {
	if m == nil {
		return map[ActivityKind]uint64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[ActivityKind]uint64, activityKindCount)
	for kind := ActivityKind(0); kind < activityKindCount; kind++ {
		out[kind] = m.activityCounts[kind]
	}
	return out
}

// armIdleLocked (re)schedules the idle timer one window out.
func (m *Manager) armIdleLocked() {
	m.cancelIdleLocked()
	gen := m.generation
	at := m.clock.Now().Add(m.config.Activity.IdleWindow)
	m.cancelIdle = m.scheduler.ScheduleAt(at, func() {
		m.idleFired(gen)
	})
}

func (m *Manager) cancelIdleLocked() {
	if m.cancelIdle != nil {
		m.cancelIdle()
		m.cancelIdle = nil
	}
}

// idleFired runs when a full idle window passed with no observed activity.
// It requests a revalidation rather than acting unilaterally; termination
// decisions stay with the validator outcome and the expiry enforcer.
func (m *Manager) idleFired(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.generation || !m.authenticatedLocked() {
		m.mu.Unlock()
		return
	}
	m.armIdleLocked()
	m.mu.Unlock()

	m.metrics.Inc(MetricActivityRevalidation)
	m.revalidate()
}

func (m *Manager) revalidate() {
	_, _ = m.Validate(context.Background())
}
