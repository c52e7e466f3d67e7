package authsession

import (
	"context"
	"errors"

	"github.com/docuflow/authsession/schedule"
	"github.com/google/uuid"
)

// Builder defines a public type used by authsession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	authority Authority
	storage   Storage
	sink      Notifier
	scheduler schedule.Scheduler
	clock     schedule.Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAuthority describes the withauthority operation and its observable behavior.
func (b *Builder) WithAuthority(a Authority) *Builder {
	b.authority = a
	return b
}

// WithStorage describes the withstorage operation and its observable behavior.
// A nil storage disables persistence; the Manager then starts logged out on
// every construction.
func (b *Builder) WithStorage(s Storage) *Builder {
	b.storage = s
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.sink = n
	return b
}

// WithScheduler describes the withscheduler operation and its observable behavior.
func (b *Builder) WithScheduler(s schedule.Scheduler) *Builder {
	b.scheduler = s
	return b
}

// WithClock describes the withclock operation and its observable behavior.
func (b *Builder) WithClock(c schedule.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the configuration, rehydrates any persisted session, and
// starts the background validation cadence. The rehydrate read happens before
// Build returns, so callers observe the restored state before any network call
// completes.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already consumed")
	}

	if b.authority == nil {
		return nil, errors.New("authority is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	scheduler := b.scheduler
	if scheduler == nil {
		scheduler = schedule.System{}
	}
	clock := b.clock
	if clock == nil {
		clock = schedule.System{}
	}

	m := &Manager{
		config:    b.config,
		authority: b.authority,
		storage:   b.storage,
		scheduler: scheduler,
		clock:     clock,
		notify:    newNotifyDispatcher(b.config.Notify, b.sink),
		metrics:   NewMetrics(b.config.Metrics),
		clientID:  uuid.NewString(),
		visible:   true,
	}

	m.mu.Lock()
	m.rehydrateLocked(context.Background())
	m.armValidationLocked()
	m.mu.Unlock()

	b.built = true
	return m, nil
}
