package schedule

import (
	"sync"
	"time"
)

// CancelFunc cancels a scheduled callback. Calling it after the callback has
// fired, or calling it twice, is a no-op.
type CancelFunc func()

// Clock observes the current instant.
type Clock interface {
	Now() time.Time
}

// Scheduler runs fn once at instant t. If t is not in the future, fn runs
// as soon as the scheduler can get to it.
type Scheduler interface {
	ScheduleAt(t time.Time, fn func()) CancelFunc
}

// System is the wall-clock implementation of [Clock] and [Scheduler], backed
// by time.AfterFunc.
type System struct{}

// Now describes the now operation and its observable behavior.
func (System) Now() time.Time {
	return time.Now()
}

// ScheduleAt describes the scheduleat operation and its observable behavior.
//
// ScheduleAt can be used concurrently; the returned CancelFunc is safe to call
// from any goroutine, including from inside the scheduled callback.
func (System) ScheduleAt(t time.Time, fn func()) CancelFunc {
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	timer := time.AfterFunc(d, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			timer.Stop()
		})
	}
}
