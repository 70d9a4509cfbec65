package simpleevents

import (
	"context"
	"time"
)

// Service defines the main interface for the simple-events library
type Service interface {
	// Event operations
	CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]*Event, error)
	UpdateEvent(ctx context.Context, req UpdateEventRequest) (*Event, error)
	DeleteEvent(ctx context.Context, id string) (bool, error)
	GetEventAttendees(ctx context.Context, eventID string) (*EventAttendees, error)
	GetEventDetails(ctx context.Context, id string) (*EventDetails, error)
	GetBannerURL(ctx context.Context, eventID string, ttl time.Duration) (string, error)

	// Attendee operations
	RegisterAttendee(ctx context.Context, req RegisterAttendeeRequest) (*Attendee, error)
	GetAttendee(ctx context.Context, id string) (*Attendee, error)
	GetAttendeeDetails(ctx context.Context, id string) (*AttendeeDetails, error)
	ListAttendeesByEvent(ctx context.Context, eventID string) ([]*Attendee, error)
	CheckInAttendee(ctx context.Context, id string) (*Attendee, error)
	UncheckAttendee(ctx context.Context, id string) (*Attendee, error)
	DeleteAttendee(ctx context.Context, id string) (bool, error)
}
