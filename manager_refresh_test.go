package authsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docuflow/authsession/storage"
)

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	auth := &fakeAuthority{
		identity:       testIdentity(),
		pair:           TokenPair{Access: testToken(t, testBase.Add(time.Hour)), Refresh: "rt-1"},
		refreshPair:    TokenPair{Access: testToken(t, testBase.Add(2*time.Hour)), Refresh: "rt-2"},
		refreshStarted: make(chan struct{}, 1),
		refreshGate:    make(chan struct{}),
	}
	m, _ := newTestManager(t, auth, testConfig(), storage.NewMemory())
	mustLogin(t, m)

	const n = 16
	results := make(chan TokenPair, n)
	failures := make(chan error, n)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pair, err := m.Refresh(context.Background())
		if err != nil {
			failures <- err
			return
		}
		results <- pair
	}()

	// Hold the exchange in flight, then pile the remaining callers onto it.
	<-auth.refreshStarted
	wg.Add(n - 1)
	for i := 0; i < n-1; i++ {
		go func() {
			defer wg.Done()
			pair, err := m.Refresh(context.Background())
			if err != nil {
				failures <- err
				return
			}
			results <- pair
		}()
	}

	// All later callers must be attached before the gate opens.
	deadline := time.Now().Add(5 * time.Second)
	for m.MetricsSnapshot().Counters[MetricRefreshCollapsed] < n-1 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d callers attached to the in-flight refresh",
				m.MetricsSnapshot().Counters[MetricRefreshCollapsed])
		}
		time.Sleep(time.Millisecond)
	}
	close(auth.refreshGate)
	wg.Wait()
	close(results)
	close(failures)

	for err := range failures {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	got := 0
	for pair := range results {
		got++
		if pair.Refresh != "rt-2" {
			t.Fatalf("caller resolved to wrong pair: %+v", pair)
		}
	}
	if got != n {
		t.Fatalf("expected %d resolved callers, got %d", n, got)
	}

	if _, refreshCalls, _, _ := auth.counts(); refreshCalls != 1 {
		t.Fatalf("expected exactly one network refresh, got %d", refreshCalls)
	}
	if m.Snapshot().Tokens.Refresh != "rt-2" {
		t.Fatal("new token pair was not installed")
	}
}

func TestRefreshRejectedForcesLogout(t *testing.T) {
	auth := &fakeAuthority{
		identity:   testIdentity(),
		pair:       TokenPair{Access: testToken(t, testBase.Add(time.Hour)), Refresh: "rt-1"},
		refreshErr: ErrRefreshRejected,
	}
	m, _ := newTestManager(t, auth, testConfig(), storage.NewMemory())
	mustLogin(t, m)

	_, err := m.Refresh(context.Background())
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}

	// Rejection is fatal and immediate: no retry, session terminated.
	if m.Authenticated() {
		t.Fatal("expected logged out after refresh rejection")
	}
	if m.State() != StateExpired {
		t.Fatalf("expected EXPIRED, got %v", m.State())
	}
	if _, refreshCalls, _, _ := auth.counts(); refreshCalls != 1 {
		t.Fatalf("rejection must not be retried, got %d calls", refreshCalls)
	}
}

func TestRefreshTransientFailureKeepsSession(t *testing.T) {
	auth := &fakeAuthority{
		identity:   testIdentity(),
		pair:       TokenPair{Access: testToken(t, testBase.Add(time.Hour)), Refresh: "rt-1"},
		refreshErr: errors.New("connect: network unreachable"),
	}
	m, _ := newTestManager(t, auth, testConfig(), storage.NewMemory())
	mustLogin(t, m)

	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected transient error surfaced to caller")
	}
	if !m.Authenticated() {
		t.Fatal("transient refresh failure must not log out")
	}
	if got := m.MetricsSnapshot().Counters[MetricRefreshFailure]; got != 1 {
		t.Fatalf("expected transient failure counted, got %d", got)
	}
}

func TestRefreshResultDiscardedAfterLogout(t *testing.T) {
	auth := &fakeAuthority{
		identity:       testIdentity(),
		pair:           TokenPair{Access: testToken(t, testBase.Add(time.Hour)), Refresh: "rt-1"},
		refreshPair:    TokenPair{Access: testToken(t, testBase.Add(2*time.Hour)), Refresh: "rt-2"},
		refreshStarted: make(chan struct{}, 1),
		refreshGate:    make(chan struct{}),
	}
	m, _ := newTestManager(t, auth, testConfig(), storage.NewMemory())
	mustLogin(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		done <- err
	}()

	<-auth.refreshStarted
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(auth.refreshGate)

	if err := <-done; !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("stale refresh result must be discarded, got %v", err)
	}
	if m.Authenticated() {
		t.Fatal("stale refresh result resurrected a cleared session")
	}
	if got := m.MetricsSnapshot().Counters[MetricStaleResultDiscarded]; got != 1 {
		t.Fatalf("expected stale discard counted, got %d", got)
	}
}

func TestRefreshRequiresSession(t *testing.T) {
	auth := &fakeAuthority{}
	m, _ := newTestManager(t, auth, testConfig(), storage.NewMemory())

	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSilentRenewFiresBeforeExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.AutoRefresh = true
	cfg.Refresh.Lead = 2 * time.Minute

	auth := &fakeAuthority{
		identity:    testIdentity(),
		pair:        TokenPair{Access: testToken(t, testBase.Add(10*time.Minute)), Refresh: "rt-1"},
		refreshPair: TokenPair{Access: testToken(t, testBase.Add(30*time.Minute)), Refresh: "rt-2"},
		validity:    Validity{Valid: true},
	}
	m, clock := newTestManager(t, auth, cfg, storage.NewMemory())
	mustLogin(t, m)

	// Renewal is due at expiry - lead = +8m.
	clock.Advance(7 * time.Minute)
	if _, refreshCalls, _, _ := auth.counts(); refreshCalls != 0 {
		t.Fatalf("renew fired early: %d calls", refreshCalls)
	}

	clock.Advance(time.Minute)
	if _, refreshCalls, _, _ := auth.counts(); refreshCalls != 1 {
		t.Fatalf("expected one silent renew, got %d", refreshCalls)
	}
	if got := m.Snapshot().Tokens.Refresh; got != "rt-2" {
		t.Fatalf("renewed pair not installed, refresh token %q", got)
	}
	if got := m.ExpiresAt(); !got.Equal(testBase.Add(30 * time.Minute)) {
		t.Fatalf("expiry not advanced by renewal: %v", got)
	}
}
