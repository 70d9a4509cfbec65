package simpleevents

import "time"

// CreateEventRequest contains parameters for creating an event
type CreateEventRequest struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Location    string
	Capacity    int
	Banner      *BannerFile // optional
}

// UpdateEventRequest contains parameters for updating an event.
// Banner, when set, replaces the current banner; Patch.Banner is ignored.
type UpdateEventRequest struct {
	ID     string
	Patch  EventPatch
	Banner *BannerFile
}

// RegisterAttendeeRequest contains parameters for registering an attendee
type RegisterAttendeeRequest struct {
	EventID string
	Name    string
	Email   string
	Phone   string
}
