package simpleevents

import (
	"io"
	"strings"
	"time"
)

// DefaultBannerFolder is the key prefix under which event banners are stored.
const DefaultBannerFolder = "event-banners"

// DefaultSignedURLTTL is used when a caller asks for a signed URL without a TTL.
const DefaultSignedURLTTL = time.Hour

// Event represents a scheduled event that attendees register for.
//
// BannerURL and BannerKey are either both set or both empty.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
	Location    string    `json:"location" validate:"required,notblank"`
	BannerURL   string    `json:"bannerUrl,omitempty" validate:"required_with=BannerKey"`
	BannerKey   string    `json:"bannerKey,omitempty" validate:"required_with=BannerURL"`
	Capacity    int       `json:"capacity" validate:"min=1"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasBanner reports whether the event references a banner blob.
func (e *Event) HasBanner() bool {
	return e.BannerKey != ""
}

// Banner returns the event's banner reference, or nil when it has none.
func (e *Event) Banner() *Banner {
	if !e.HasBanner() {
		return nil
	}
	return &Banner{URL: e.BannerURL, Key: e.BannerKey}
}

// Apply returns a copy of the event with the patch applied.
func (e *Event) Apply(patch EventPatch) *Event {
	out := *e
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.StartDate != nil {
		out.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		out.EndDate = *patch.EndDate
	}
	if patch.Location != nil {
		out.Location = *patch.Location
	}
	if patch.Capacity != nil {
		out.Capacity = *patch.Capacity
	}
	if patch.Banner != nil {
		out.BannerURL = patch.Banner.URL
		out.BannerKey = patch.Banner.Key
	}
	return &out
}

// Banner is a reference to a stored banner blob. URL and Key travel together.
type Banner struct {
	URL string `json:"url" validate:"required"`
	Key string `json:"key" validate:"required"`
}

// EventPatch carries the fields of an event update. Nil fields keep their
// current value; Banner replaces both banner fields as a unit.
type EventPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitnil,notblank,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitnil,notblank"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Location    *string    `json:"location,omitempty" validate:"omitnil,notblank"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitnil,min=1"`
	Banner      *Banner    `json:"-"`
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.StartDate == nil &&
		p.EndDate == nil && p.Location == nil && p.Capacity == nil && p.Banner == nil
}

// Attendee represents a registration of one person for one event.
type Attendee struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId" validate:"required"`
	Name         string    `json:"name" validate:"required,notblank"`
	Email        string    `json:"email" validate:"required,email"`
	Phone        string    `json:"phone,omitempty"`
	CheckedIn    bool      `json:"checkedIn"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NormalizeEmail trims and lowercases an email address. Uniqueness of
// (eventId, email) is evaluated on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AttendeeStats summarizes the attendees of an event.
type AttendeeStats struct {
	Total     int64 `json:"total"`
	CheckedIn int64 `json:"checkedIn"`
}

// EventAttendees is the attendee listing of an event together with its stats.
type EventAttendees struct {
	Attendees []*Attendee   `json:"attendees"`
	Stats     AttendeeStats `json:"stats"`
}

// EventDetails is an event with its attendee listing.
type EventDetails struct {
	*Event
	Attendees []*Attendee   `json:"attendees"`
	Stats     AttendeeStats `json:"stats"`
}

// AttendeeDetails is an attendee together with the event it registered for.
// Event is nil when the event no longer exists.
type AttendeeDetails struct {
	*Attendee
	Event *Event `json:"event"`
}

// BannerFile is a banner image supplied with an event create or update.
type BannerFile struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}
