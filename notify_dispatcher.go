package authsession

import (
	"context"
	"sync"
	"sync/atomic"
)

// shedRank orders notification kinds for buffer pressure: lower ranks are shed
// first. Terminal lifecycle events (forced logout, expiry warning) outrank
// informational ones; a stale-validity ping is always the first to go.
func shedRank(kind NotifyKind) int {
	switch kind {
	case KindValidityStale:
		return 0
	case KindLoggedOut:
		return 1
	case KindExpiryWarning:
		return 2
	case KindForcedLogout:
		return 3
	default:
		return 1
	}
}

// notifyDispatcher delivers notifications to the sink asynchronously through a
// bounded queue. Under pressure it sheds by kind, never by arrival order: a
// forced logout displaces a queued stale-validity event rather than being
// dropped itself, so the events a consumer must not miss survive a slow sink.
type notifyDispatcher struct {
	cfg  NotifyConfig
	sink Notifier

	mu    sync.Mutex
	queue []Notification

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	shed      atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sink Notifier) *notifyDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpNotifier{}
	}

	d := &notifyDispatcher{
		cfg:  cfg,
		sink: sink,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		if event, ok := d.pop(); ok {
			d.sink.Notify(context.Background(), event)
			continue
		}
		select {
		case <-d.wake:
		case <-d.done:
			for {
				event, ok := d.pop()
				if !ok {
					return
				}
				d.sink.Notify(context.Background(), event)
			}
		}
	}
}

func (d *notifyDispatcher) pop() (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return Notification{}, false
	}
	event := d.queue[0]
	d.queue = d.queue[1:]
	return event, true
}

// Emit enqueues the event without ever blocking the caller. When the queue is
// full, the lowest-ranked queued event strictly below the incoming kind is
// displaced; otherwise the incoming event itself is shed. Either way exactly
// one event is counted as shed.
//
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *notifyDispatcher) Emit(event Notification) {
	if d == nil || d.closed.Load() {
		return
	}

	d.mu.Lock()
	if len(d.queue) < d.cfg.BufferSize {
		d.queue = append(d.queue, event)
	} else {
		victim := -1
		for i, queued := range d.queue {
			if shedRank(queued.Kind) >= shedRank(event.Kind) {
				continue
			}
			if victim == -1 || shedRank(queued.Kind) < shedRank(d.queue[victim].Kind) {
				victim = i
			}
		}
		if victim >= 0 {
			d.queue = append(d.queue[:victim], d.queue[victim+1:]...)
			d.queue = append(d.queue, event)
		}
		d.shed.Add(1)
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops the dispatcher after draining every queued event into the sink.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were shed under buffer pressure.
func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.shed.Load()
}
