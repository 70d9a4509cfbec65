// Package metrics exposes Prometheus counters for event lifecycle
// notifications and HTTP traffic.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

const namespace = "simple_events"

// Rejection reasons used as the "reason" label
const (
	ReasonCapacity  = "capacity"
	ReasonDuplicate = "duplicate"
	ReasonOther     = "other"
)

// Collector records lifecycle notifications as Prometheus metrics.
// It implements simpleevents.EventSink.
type Collector struct {
	EventsTotal           *prometheus.CounterVec
	AttendeesRemovedTotal prometheus.Counter
	RegistrationsTotal    prometheus.Counter
	RejectionsTotal       *prometheus.CounterVec
	CheckInsTotal         *prometheus.CounterVec
	BannersOrphanedTotal  prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
}

var _ simpleevents.EventSink = (*Collector)(nil)

// New registers the collector's metrics with reg
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of event lifecycle changes",
			},
			[]string{"action"}, // action: created|updated|deleted
		),
		AttendeesRemovedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attendees_removed_total",
				Help:      "Total number of attendees removed with their event",
			},
		),
		RegistrationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of admitted attendee registrations",
			},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registration_rejections_total",
				Help:      "Total number of refused attendee registrations",
			},
			[]string{"reason"},
		),
		CheckInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_ins_total",
				Help:      "Total number of attendee check-in state changes",
			},
			[]string{"state"}, // state: checked_in|unchecked
		),
		BannersOrphanedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "banners_orphaned_total",
				Help:      "Total number of banner blobs left behind after a failed delete",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}
}

func (c *Collector) EventCreated(ctx context.Context, event *simpleevents.Event) error {
	c.EventsTotal.WithLabelValues("created").Inc()
	return nil
}

func (c *Collector) EventUpdated(ctx context.Context, event *simpleevents.Event) error {
	c.EventsTotal.WithLabelValues("updated").Inc()
	return nil
}

func (c *Collector) EventDeleted(ctx context.Context, eventID string, attendeesRemoved int64) error {
	c.EventsTotal.WithLabelValues("deleted").Inc()
	c.AttendeesRemovedTotal.Add(float64(attendeesRemoved))
	return nil
}

func (c *Collector) AttendeeRegistered(ctx context.Context, attendee *simpleevents.Attendee) error {
	c.RegistrationsTotal.Inc()
	return nil
}

func (c *Collector) RegistrationRejected(ctx context.Context, eventID string, reason error) error {
	c.RejectionsTotal.WithLabelValues(RejectionReason(reason)).Inc()
	return nil
}

func (c *Collector) AttendeeCheckedIn(ctx context.Context, attendee *simpleevents.Attendee) error {
	state := "unchecked"
	if attendee.CheckedIn {
		state = "checked_in"
	}
	c.CheckInsTotal.WithLabelValues(state).Inc()
	return nil
}

func (c *Collector) BannerOrphaned(ctx context.Context, key string, cause error) error {
	c.BannersOrphanedTotal.Inc()
	return nil
}

// RejectionReason maps an admission error to a bounded label value
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, simpleevents.ErrCapacityExceeded):
		return ReasonCapacity
	case errors.Is(err, simpleevents.ErrDuplicateRegistration):
		return ReasonDuplicate
	default:
		return ReasonOther
	}
}
