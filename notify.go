package authsession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// NotifyKind classifies notification events emitted by the Manager.
type NotifyKind string

const (
	// KindExpiryWarning fires when the warning window before expiry opens.
	KindExpiryWarning NotifyKind = "session.expiry_warning"
	// KindForcedLogout fires when expiry or an authoritative rejection
	// terminates the session.
	KindForcedLogout NotifyKind = "session.forced_logout"
	// KindValidityStale fires when a validation attempt fails on transport
	// and the last known validity is being served.
	KindValidityStale NotifyKind = "session.validity_stale"
	// KindLoggedOut fires on explicit user-initiated logout.
	KindLoggedOut NotifyKind = "session.logged_out"
)

// Notification is the fire-and-forget event handed to the configured sink.
// The Manager never renders; consumers decide how a kind is surfaced.
type Notification struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      NotifyKind        `json:"kind"`
	Message   string            `json:"message"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notifier receives emitted notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NoOpNotifier drops all notifications.
type NoOpNotifier struct{}

// Notify describes the notify operation and its observable behavior.
func (NoOpNotifier) Notify(context.Context, Notification) {}

// ChannelNotifier writes notifications into a buffered channel.
type ChannelNotifier struct {
	events chan Notification
}

// NewChannelNotifier describes the newchannelnotifier operation and its observable behavior.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelNotifier{
		events: make(chan Notification, buffer),
	}
}

// Notify describes the notify operation and its observable behavior.
func (s *ChannelNotifier) Notify(ctx context.Context, n Notification) {
	select {
	case s.events <- n:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
func (s *ChannelNotifier) Events() <-chan Notification {
	return s.events
}

// JSONWriterNotifier writes one JSON object per line.
type JSONWriterNotifier struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterNotifier describes the newjsonwriternotifier operation and its observable behavior.
func NewJSONWriterNotifier(w io.Writer) *JSONWriterNotifier {
	return &JSONWriterNotifier{
		writer: w,
	}
}

// Notify describes the notify operation and its observable behavior.
func (s *JSONWriterNotifier) Notify(ctx context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
