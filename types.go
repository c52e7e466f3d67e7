package authsession

import (
	"context"
	"time"
)

// Identity is the authenticated user record held by the session. It is
// immutable except through [Manager.Login] and [Manager.UpdateIdentity].
type Identity struct {
	ID          string
	DisplayName string
	Roles       []string
	OrgUnit     string
}

func (id *Identity) clone() *Identity {
	if id == nil {
		return nil
	}
	out := *id
	out.Roles = append([]string(nil), id.Roles...)
	return &out
}

// TokenPair carries the short-lived access token and the long-lived refresh
// token. The refresh token is used only to mint new access tokens.
type TokenPair struct {
	Access  string
	Refresh string
}

// Validity is the validator's read model: the authority's last answer to
// "is this session still honored, and until when".
//
// Stale is set when the most recent validation attempt failed on transport;
// the remaining fields then reflect the last successful check.
type Validity struct {
	Valid     bool
	ExpiresAt time.Time
	CheckedAt time.Time
	Stale     bool
}

// ActivityKind classifies user-interaction signals fed to
// [Manager.RecordActivity].
type ActivityKind uint8

const (
	// ActivityPointer covers mouse movement and clicks.
	ActivityPointer ActivityKind = iota
	// ActivityKeyboard covers key presses.
	ActivityKeyboard
	// ActivityScroll covers scroll and wheel events.
	ActivityScroll
	// ActivityTouch covers touch and gesture events.
	ActivityTouch

	activityKindCount
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityPointer:
		return "pointer"
	case ActivityKeyboard:
		return "keyboard"
	case ActivityScroll:
		return "scroll"
	case ActivityTouch:
		return "touch"
	default:
		return "unknown"
	}
}

// ExpiryState is the expiry enforcer's state machine position.
type ExpiryState uint8

const (
	// StateActive means the session is live with no imminent expiry.
	StateActive ExpiryState = iota
	// StateWarned means the warning window has opened and the user has been
	// notified; the session is still usable.
	StateWarned
	// StateExpired is terminal for the current session. Only a fresh login
	// leaves it.
	StateExpired
)

func (s ExpiryState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarned:
		return "warned"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionSnapshot is a point-in-time copy of the session state, safe to retain.
type SessionSnapshot struct {
	Authenticated bool
	Identity      *Identity
	Tokens        TokenPair
	ExpiresAt     time.Time
	LoggingOut    bool
	Generation    uint64
	ClientID      string
}

// Authority is the external authentication authority consumed as a black box.
// Implementations must honor context deadlines; the Manager bounds every call.
//
// Error contract: transport failures wrap [ErrAuthorityUnavailable]; an
// explicit login rejection wraps [ErrInvalidCredentials]; an explicit refresh
// rejection wraps [ErrRefreshRejected].
type Authority interface {
	Login(ctx context.Context, username, password string) (TokenPair, Identity, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Validate(ctx context.Context, accessToken string) (Validity, error)
	FetchIdentity(ctx context.Context, accessToken string) (Identity, error)
}

// Storage is the durable key-value store holding the persisted session
// projection. Get must return an error wrapping storage.ErrNotFound for an
// absent key. The Manager treats every Storage fault as recoverable.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
