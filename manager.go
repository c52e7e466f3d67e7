package authsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/docuflow/authsession/schedule"
	"github.com/docuflow/authsession/snapshot"
	"github.com/docuflow/authsession/storage"
	"github.com/docuflow/authsession/token"
)

// Manager is the session lifecycle manager: the single source of truth for
// credential state and the only component allowed to mutate it. Construct it
// through [Builder.Build]; a zero Manager is not usable.
//
// All methods are safe for concurrent use. State transitions are serialized by
// one mutex; asynchronous completions (refresh, validation) carry the
// generation current when they started and are discarded on arrival when the
// session has since been cleared.
type Manager struct {
	config    Config
	authority Authority
	storage   Storage
	scheduler schedule.Scheduler
	clock     schedule.Clock
	notify    *notifyDispatcher
	metrics   *Metrics

	mu         sync.Mutex
	identity   *Identity
	tokens     TokenPair
	expiresAt  time.Time
	loggingOut bool
	generation uint64
	clientID   string
	validity   Validity
	closed     bool

	// expiry enforcer
	state        ExpiryState
	cancelWarn   schedule.CancelFunc
	cancelExpire schedule.CancelFunc
	cancelRenew  schedule.CancelFunc

	// activity monitor
	cancelIdle       schedule.CancelFunc
	visible          bool
	lastActivity     time.Time
	lastActivityKind ActivityKind
	activityCounts   [activityKindCount]uint64

	// validator cadence
	cancelPoll schedule.CancelFunc

	// refresh collapse
	pending *pendingRefresh
}

// Close disposes the Manager: cancels every pending timer, stops the
// notification dispatcher, and causes any in-flight authority result to be
// discarded on arrival. Close is idempotent. Session state and the durable
// snapshot are left untouched, so a later Build resumes the session.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelTimersLocked()
	m.cancelIdleLocked()
	if m.cancelPoll != nil {
		m.cancelPoll()
		m.cancelPoll = nil
	}
	m.mu.Unlock()

	m.notify.Close()
}

// Login authenticates against the authority and atomically replaces the
// session: identity and token pair installed together, loggingOut cleared,
// timers scheduled from the new expiry.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if m == nil || m.authority == nil {
		return ErrManagerNotReady
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.config.Authority.Timeout)
	pair, identity, err := m.authority.Login(cctx, username, password)
	cancel()
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return err
	}

	expiresAt := accessExpiry(pair.Access)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.installSessionLocked(&identity, pair, expiresAt)
	m.metrics.Inc(MetricLoginSuccess)
	return nil
}

// Logout clears identity, token pair, and expiry atomically, cancels all
// pending timers, and best-effort purges the durable snapshot. The loggingOut
// flag stays set until the next successful login so that stale async results
// cannot resurrect the session. Logout is idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	if m == nil {
		return ErrManagerNotReady
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	wasAuthenticated := m.authenticatedLocked()
	var userID string
	if m.identity != nil {
		userID = m.identity.ID
	}
	m.clearSessionLocked(StateActive)
	m.purgeLocked(ctx)
	m.mu.Unlock()

	if wasAuthenticated {
		m.metrics.Inc(MetricLogout)
		m.emit(KindLoggedOut, "user logged out", userID)
	}
	return nil
}

// UpdateIdentity re-fetches the profile from the authority and replaces the
// identity only; the token pair is untouched. Results arriving after a logout
// or re-login are discarded.
//
// UpdateIdentity may return an error when input validation, dependency calls, or security checks fail.
func (m *Manager) UpdateIdentity(ctx context.Context) (Identity, error) {
	if m == nil || m.authority == nil {
		return Identity{}, ErrManagerNotReady
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Identity{}, ErrManagerClosed
	}
	if !m.authenticatedLocked() {
		err := m.notAuthenticatedErrLocked()
		m.mu.Unlock()
		return Identity{}, err
	}
	gen := m.generation
	access := m.tokens.Access
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.config.Authority.Timeout)
	identity, err := m.authority.FetchIdentity(cctx, access)
	cancel()
	if err != nil {
		return Identity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Identity{}, ErrManagerClosed
	}
	if gen != m.generation {
		m.metrics.Inc(MetricStaleResultDiscarded)
		return Identity{}, ErrSessionInvalid
	}
	m.identity = identity.clone()
	m.persistLocked()
	return identity, nil
}

/*
====================================
READ SURFACE
====================================
*/

// Authenticated reports whether a live session is held.
func (m *Manager) Authenticated() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked()
}

// CurrentIdentity returns a copy of the authenticated identity, or nil when
// logged out.
func (m *Manager) CurrentIdentity() *Identity {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticatedLocked() {
		return nil
	}
	return m.identity.clone()
}

// HasRole reports whether the authenticated identity carries role. Always
// false when logged out.
func (m *Manager) HasRole(role string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticatedLocked() {
		return false
	}
	for _, r := range m.identity.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the authenticated identity carries at least one
// of the given roles. Always false when logged out.
func (m *Manager) HasAnyRole(roles ...string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticatedLocked() {
		return false
	}
	for _, want := range roles {
		for _, r := range m.identity.Roles {
			if r == want {
				return true
			}
		}
	}
	return false
}

// Snapshot returns a point-in-time copy of the full session state.
func (m *Manager) Snapshot() SessionSnapshot {
	if m == nil {
		return SessionSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return SessionSnapshot{
		Authenticated: m.authenticatedLocked(),
		Identity:      m.identity.clone(),
		Tokens:        m.tokens,
		ExpiresAt:     m.expiresAt,
		LoggingOut:    m.loggingOut,
		Generation:    m.generation,
		ClientID:      m.clientID,
	}
}

// ExpiresAt returns the known expiry instant; zero when unknown or logged out.
func (m *Manager) ExpiresAt() time.Time {
	if m == nil {
		return time.Time{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// State returns the expiry enforcer's current position.
func (m *Manager) State() ExpiryState {
	if m == nil {
		return StateActive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Validity returns the validator's last read model.
func (m *Manager) Validity() Validity {
	if m == nil {
		return Validity{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validity
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return m.metrics.Snapshot()
}

// NotifyDropped reports how many notifications the dispatcher discarded.
func (m *Manager) NotifyDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.notify.Dropped()
}

/*
====================================
STATE TRANSITIONS
====================================
*/

func (m *Manager) authenticatedLocked() bool {
	return m.identity != nil && m.tokens.Access != ""
}

// notAuthenticatedErrLocked picks the sentinel for operations that need a live
// session: EXPIRED is reported distinctly from never-logged-in or logged-out.
func (m *Manager) notAuthenticatedErrLocked() error {
	if m.state == StateExpired {
		return ErrSessionExpired
	}
	return ErrNotAuthenticated
}

// installSessionLocked replaces the whole session. The one entry point for a
// fresh login or a rehydrated snapshot.
func (m *Manager) installSessionLocked(identity *Identity, pair TokenPair, expiresAt time.Time) {
	m.identity = identity.clone()
	m.tokens = pair
	m.expiresAt = expiresAt
	m.loggingOut = false
	m.generation++
	m.state = StateActive
	m.validity = Validity{
		Valid:     true,
		ExpiresAt: expiresAt,
		CheckedAt: m.clock.Now(),
	}
	m.lastActivity = m.clock.Now()
	m.lastActivityKind = ActivityPointer
	m.activityCounts = [activityKindCount]uint64{}
	m.scheduleTimersLocked()
	m.armIdleLocked()
	m.persistLocked()
}

// installTokensLocked replaces the token pair only; identity is retained.
// Used by the refresher.
func (m *Manager) installTokensLocked(pair TokenPair) {
	m.tokens = pair
	if expiresAt := accessExpiry(pair.Access); !expiresAt.IsZero() {
		m.expiresAt = expiresAt
	}
	m.state = StateActive
	m.scheduleTimersLocked()
	m.persistLocked()
}

// clearSessionLocked clears every credential field atomically: no reader can
// observe identity without tokens or vice versa. The generation bump makes
// every in-flight async result stale.
func (m *Manager) clearSessionLocked(next ExpiryState) {
	m.identity = nil
	m.tokens = TokenPair{}
	m.expiresAt = time.Time{}
	m.validity = Validity{}
	m.loggingOut = true
	m.generation++
	m.state = next
	m.cancelTimersLocked()
	m.cancelIdleLocked()
}

/*
====================================
PERSISTENCE
====================================
*/

func (m *Manager) persistenceEnabled() bool {
	return m.storage != nil && m.config.Persistence.Enabled
}

// persistLocked writes the restricted projection on every mutation. Storage
// faults are absorbed: persistence is an optimization, not a correctness
// dependency.
func (m *Manager) persistLocked() {
	if !m.persistenceEnabled() {
		return
	}

	p := &snapshot.Projection{
		Authenticated: m.authenticatedLocked(),
		LoggingOut:    m.loggingOut,
		AccessToken:   m.tokens.Access,
		RefreshToken:  m.tokens.Refresh,
		ClientID:      m.clientID,
	}
	if m.identity != nil {
		p.UserID = m.identity.ID
		p.DisplayName = m.identity.DisplayName
		p.OrgUnit = m.identity.OrgUnit
		p.Roles = append([]string(nil), m.identity.Roles...)
	}
	if !m.expiresAt.IsZero() {
		p.ExpiresAt = m.expiresAt.Unix()
	}

	data, err := snapshot.Encode(p)
	if err != nil {
		m.metrics.Inc(MetricSnapshotWriteFailure)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Persistence.WriteTimeout)
	defer cancel()
	if err := m.storage.Set(ctx, m.config.Persistence.Key, data); err != nil {
		m.metrics.Inc(MetricSnapshotWriteFailure)
	}
}

// purgeLocked best-effort removes the durable snapshot so no stale identity
// leaks into a subsequent anonymous session.
func (m *Manager) purgeLocked(ctx context.Context) {
	if !m.persistenceEnabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, m.config.Persistence.WriteTimeout)
	defer cancel()
	if err := m.storage.Remove(cctx, m.config.Persistence.Key); err != nil {
		m.metrics.Inc(MetricSnapshotWriteFailure)
	}
}

// rehydrateLocked seeds initial state from the durable snapshot. Empty,
// absent, or corrupt snapshots fall back to logged-out: a recovered failure,
// never fatal.
func (m *Manager) rehydrateLocked(ctx context.Context) {
	if !m.persistenceEnabled() {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, m.config.Persistence.WriteTimeout)
	data, err := m.storage.Get(cctx, m.config.Persistence.Key)
	cancel()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.metrics.Inc(MetricRehydrateCorrupt)
		}
		return
	}

	p, err := snapshot.Decode(data)
	if err != nil {
		m.metrics.Inc(MetricRehydrateCorrupt)
		m.purgeLocked(ctx)
		return
	}

	if p.ClientID != "" {
		m.clientID = p.ClientID
	}

	if !p.Authenticated {
		// A persisted loggingOut survives restarts; only a real login clears it.
		m.loggingOut = p.LoggingOut
		return
	}

	var expiresAt time.Time
	if p.ExpiresAt != 0 {
		expiresAt = time.Unix(p.ExpiresAt, 0)
		if !expiresAt.After(m.clock.Now()) {
			// Expired while the process was away. Expiry is definitional.
			m.purgeLocked(ctx)
			return
		}
	}

	identity := &Identity{
		ID:          p.UserID,
		DisplayName: p.DisplayName,
		OrgUnit:     p.OrgUnit,
		Roles:       append([]string(nil), p.Roles...),
	}
	m.installSessionLocked(identity, TokenPair{Access: p.AccessToken, Refresh: p.RefreshToken}, expiresAt)
	m.metrics.Inc(MetricRehydrateSuccess)
}

/*
====================================
HELPERS
====================================
*/

func (m *Manager) emit(kind NotifyKind, message, userID string) {
	if m == nil || m.notify == nil {
		return
	}
	m.notify.Emit(Notification{
		Timestamp: m.clock.Now(),
		Kind:      kind,
		Message:   message,
		UserID:    userID,
	})
}

// accessExpiry reads the token's own encoded expiry as fallback bookkeeping.
// Server-reported expiry from validation always wins over this value.
func accessExpiry(accessToken string) time.Time {
	expiresAt, err := token.ExpiresAt(accessToken)
	if err != nil {
		return time.Time{}
	}
	return expiresAt
}
