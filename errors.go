package authsession

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the authority rejects
	// the supplied username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshRejected is returned when the authority explicitly refuses
	// the refresh token. It is fatal for the session: renewal can never succeed.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrSessionInvalid is returned when the authority reports the session is
	// no longer honored, or when an async result arrives for a cleared session.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionExpired is returned for operations attempted after the expiry
	// enforcer has terminated the session and before the next login.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by operations that require a live session
	// when none was ever established or it was explicitly logged out.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAuthorityUnavailable wraps transient transport failures while talking
	// to the authentication authority. Recoverable; never forces logout.
	ErrAuthorityUnavailable = errors.New("authority unavailable")
	// ErrManagerClosed is returned by all operations after Close.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrManagerNotReady is returned when a nil or unbuilt Manager is used.
	ErrManagerNotReady = errors.New("session manager not initialized")
)
