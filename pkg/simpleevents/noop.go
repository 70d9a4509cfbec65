package simpleevents

import "context"

// NoopEventSink is a no-operation implementation of EventSink
// Useful when lifecycle notifications are not needed, or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) EventCreated(ctx context.Context, event *Event) error { return nil }

func (n *NoopEventSink) EventUpdated(ctx context.Context, event *Event) error { return nil }

func (n *NoopEventSink) EventDeleted(ctx context.Context, eventID string, attendeesRemoved int64) error {
	return nil
}

func (n *NoopEventSink) AttendeeRegistered(ctx context.Context, attendee *Attendee) error {
	return nil
}

func (n *NoopEventSink) RegistrationRejected(ctx context.Context, eventID string, reason error) error {
	return nil
}

func (n *NoopEventSink) AttendeeCheckedIn(ctx context.Context, attendee *Attendee) error {
	return nil
}

func (n *NoopEventSink) BannerOrphaned(ctx context.Context, key string, cause error) error {
	return nil
}
