package authsession

import (
	"errors"
	"time"
)

// Config defines a public type used by authsession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Authority   AuthorityConfig
	Refresh     RefreshConfig
	Validation  ValidationConfig
	Activity    ActivityConfig
	Expiry      ExpiryConfig
	Persistence PersistenceConfig
	Notify      NotifyConfig
	Metrics     MetricsConfig
}

/*
====================================
AUTHORITY CONFIG
====================================
*/

// AuthorityConfig bounds direct authority calls that have no cadence of their
// own (login, identity fetch).
type AuthorityConfig struct {
	Timeout time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls proactive token renewal.
type RefreshConfig struct {
	// Lead is how long before the known expiry the silent refresh fires.
	Lead time.Duration
	// Timeout bounds a single refresh call to the authority.
	Timeout time.Duration
	// AutoRefresh disables the scheduled silent refresh when false; Refresh
	// can still be called explicitly.
	AutoRefresh bool
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig controls the periodic session validation cadence.
type ValidationConfig struct {
	// Interval between background validation checks while authenticated.
	Interval time.Duration
	// Timeout bounds a single validation call to the authority.
	Timeout time.Duration
}

/*
====================================
ACTIVITY CONFIG
====================================
*/

// ActivityConfig controls the activity monitor.
type ActivityConfig struct {
	// IdleWindow is how long the session may go without observed activity
	// before a revalidation is requested.
	IdleWindow time.Duration
	// RevalidateOnVisible requests a revalidation when the page regains
	// visibility.
	RevalidateOnVisible bool
}

/*
====================================
EXPIRY CONFIG
====================================
*/

// ExpiryConfig controls the expiry enforcer.
type ExpiryConfig struct {
	// WarningWindow is how long before expiry the warning fires.
	WarningWindow time.Duration
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig controls the durable session projection.
type PersistenceConfig struct {
	Enabled bool
	// Key is the storage key the projection is written under.
	Key string
	// WriteTimeout bounds each storage operation.
	WriteTimeout time.Duration
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls the asynchronous notification dispatcher. The queue
// is bounded by BufferSize; under pressure the dispatcher sheds by kind
// (stale-validity pings first, forced logouts last) rather than by arrival.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Authority: AuthorityConfig{
			Timeout: 15 * time.Second,
		},
		Refresh: RefreshConfig{
			Lead:        2 * time.Minute,
			Timeout:     10 * time.Second,
			AutoRefresh: true,
		},
		Validation: ValidationConfig{
			Interval: time.Minute,
			Timeout:  10 * time.Second,
		},
		Activity: ActivityConfig{
			IdleWindow:          10 * time.Minute,
			RevalidateOnVisible: true,
		},
		Expiry: ExpiryConfig{
			WarningWindow: 5 * time.Minute,
		},
		Persistence: PersistenceConfig{
			Enabled:      true,
			Key:          "authsession/v2",
			WriteTimeout: 3 * time.Second,
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize: 64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the explicit clone point is kept so
	// reference fields added later cannot alias caller state.
	return cfg
}

// Validate checks the configuration for values the Manager cannot run with.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (c Config) Validate() error {
	if c.Authority.Timeout <= 0 {
		return errors.New("authority timeout must be positive")
	}
	if c.Refresh.Lead < 0 {
		return errors.New("refresh lead must not be negative")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("refresh timeout must be positive")
	}
	if c.Validation.Interval <= 0 {
		return errors.New("validation interval must be positive")
	}
	if c.Validation.Timeout <= 0 {
		return errors.New("validation timeout must be positive")
	}
	if c.Activity.IdleWindow <= 0 {
		return errors.New("activity idle window must be positive")
	}
	if c.Expiry.WarningWindow <= 0 {
		return errors.New("expiry warning window must be positive")
	}
	if c.Persistence.Enabled {
		if c.Persistence.Key == "" {
			return errors.New("persistence key must not be empty")
		}
		if c.Persistence.WriteTimeout <= 0 {
			return errors.New("persistence write timeout must be positive")
		}
	}
	if c.Notify.Enabled && c.Notify.BufferSize < 0 {
		return errors.New("notify buffer size must not be negative")
	}
	return nil
}
