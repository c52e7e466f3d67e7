package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/docuflow/authsession"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the read surface the exporter observes. *authsession.Manager
// satisfies it.
type metricsSource interface {
	MetricsSnapshot() authsession.MetricsSnapshot
	NotifyDropped() uint64
}

type counterDef struct {
	id   authsession.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{id: authsession.MetricLoginSuccess, name: "authsession_login_success_total", help: "Successful logins."},
	{id: authsession.MetricLoginFailure, name: "authsession_login_failure_total", help: "Authority-rejected logins."},
	{id: authsession.MetricRefreshSuccess, name: "authsession_refresh_success_total", help: "Token pairs installed by refresh."},
	{id: authsession.MetricRefreshFailure, name: "authsession_refresh_failure_total", help: "Transient refresh failures."},
	{id: authsession.MetricRefreshCollapsed, name: "authsession_refresh_collapsed_total", help: "Callers attached to an in-flight refresh."},
	{id: authsession.MetricRefreshRejected, name: "authsession_refresh_rejected_total", help: "Fatal refresh-token rejections."},
	{id: authsession.MetricValidateSuccess, name: "authsession_validate_success_total", help: "Validations confirming the session."},
	{id: authsession.MetricValidateStale, name: "authsession_validate_stale_total", help: "Validation attempts absorbed as transport failures."},
	{id: authsession.MetricValidateInvalid, name: "authsession_validate_invalid_total", help: "Validations reporting the session dead."},
	{id: authsession.MetricExpiryWarned, name: "authsession_expiry_warned_total", help: "Warning-window transitions."},
	{id: authsession.MetricExpiryFired, name: "authsession_expiry_fired_total", help: "Expiry-timer terminations."},
	{id: authsession.MetricExpiryExtended, name: "authsession_expiry_extended_total", help: "Reschedules to a later expiry."},
	{id: authsession.MetricLogout, name: "authsession_logout_total", help: "Explicit logouts."},
	{id: authsession.MetricActivityRevalidation, name: "authsession_activity_revalidation_total", help: "Revalidations requested by the activity monitor."},
	{id: authsession.MetricVisibilityRevalidation, name: "authsession_visibility_revalidation_total", help: "Revalidations requested on refocus."},
	{id: authsession.MetricRehydrateSuccess, name: "authsession_rehydrate_success_total", help: "Sessions restored from storage."},
	{id: authsession.MetricRehydrateCorrupt, name: "authsession_rehydrate_corrupt_total", help: "Snapshots discarded as corrupt."},
	{id: authsession.MetricSnapshotWriteFailure, name: "authsession_snapshot_write_failure_total", help: "Absorbed storage write faults."},
	{id: authsession.MetricStaleResultDiscarded, name: "authsession_stale_result_discarded_total", help: "Async results dropped by the generation check."},
}

type observedCounter struct {
	id         authsession.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter bridges the manager's counters into an OTel Meter via a single
// registered callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	notifyShed   metric.Int64ObservableCounter
}

// NewExporter describes the newexporter operation and its observable behavior.
//
// NewExporter may return an error when input validation, dependency calls, or security checks fail.
func NewExporter(meter metric.Meter, manager *authsession.Manager) (*Exporter, error) {
	if manager == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, manager)
}

// NewExporterFromSource registers the instruments against any metrics source.
//
// NewExporterFromSource may return an error when input validation, dependency calls, or security checks fail.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)
	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	notifyShed, err := meter.Int64ObservableCounter(
		"authsession_notify_shed_total",
		metric.WithDescription("Notifications shed by the dispatcher under buffer pressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create notify shed counter: %w", err)
	}
	exporter.notifyShed = notifyShed
	observables = append(observables, notifyShed)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.notifyShed, int64(exporter.source.NotifyDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
