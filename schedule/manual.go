package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic [Clock] and [Scheduler] for tests. Time only moves
// through [Manual.Advance], which fires due callbacks in scheduling order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	entries []*manualEntry
}

type manualEntry struct {
	at       time.Time
	seq      uint64
	fn       func()
	canceled bool
}

// NewManual creates a Manual clock pinned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now describes the now operation and its observable behavior.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// ScheduleAt describes the scheduleat operation and its observable behavior.
func (m *Manual) ScheduleAt(t time.Time, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	entry := &manualEntry{at: t, seq: m.seq, fn: fn}
	m.entries = append(m.entries, entry)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entry.canceled = true
	}
}

// Advance moves the clock forward by d, firing every due callback in
// (instant, scheduling) order. Callbacks run without the internal lock held,
// so they may schedule or cancel further work.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		entry := m.popDue(target)
		if entry == nil {
			break
		}
		entry.fn()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// Pending reports how many callbacks are scheduled and not canceled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if !e.canceled {
			n++
		}
	}
	return n
}

func (m *Manual) popDue(target time.Time) *manualEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].at.Equal(m.entries[j].at) {
			return m.entries[i].seq < m.entries[j].seq
		}
		return m.entries[i].at.Before(m.entries[j].at)
	})

	for i, e := range m.entries {
		if e.canceled {
			continue
		}
		if e.at.After(target) {
			break
		}
		// Clock catches up to the firing instant before the callback runs.
		if e.at.After(m.now) {
			m.now = e.at
		}
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		return e
	}

	// Drop canceled leftovers opportunistically.
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.canceled {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}
