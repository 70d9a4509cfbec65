package simpleevents

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for banner storage backends
type BlobStore interface {
	// Upload stores content under a freshly generated key inside params.Folder
	// and returns the public URL and the key. Failures match ErrStorageWrite.
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited URL for reading the object at key
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// BlobReader is implemented by blob stores whose objects are served by this
// process rather than by the store itself. Open returns ErrBlobNotFound for a
// missing key.
type BlobReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, *BlobInfo, error)
}

// BlobInfo describes a stored object
type BlobInfo struct {
	Key         string
	ContentType string
	Size        int64
	UpdatedAt   time.Time
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	Folder      string
	FileName    string
	ContentType string
	Size        int64 // -1 or 0 when unknown
	Body        io.Reader
}

// UploadResult is where an uploaded object can be found
type UploadResult struct {
	URL string
	Key string
}

// EventRepository defines persistence for events
type EventRepository interface {
	// CreateEvent validates and stores the event, assigning ID and timestamps
	CreateEvent(ctx context.Context, event *Event) error

	// FindEventByID returns ErrEventNotFound when the event does not exist
	FindEventByID(ctx context.Context, id string) (*Event, error)

	// ListEvents returns all events ordered by start date ascending
	ListEvents(ctx context.Context) ([]*Event, error)

	// UpdateEvent applies the patch and returns the updated record
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (*Event, error)

	// DeleteEvent reports whether a record was removed
	DeleteEvent(ctx context.Context, id string) (bool, error)
}

// AttendeeRepository defines persistence for attendees.
// CreateAttendee must return ErrConflict when (eventId, email) already exists;
// the store's uniqueness constraint, not a prior read, is what guarantees it.
type AttendeeRepository interface {
	CreateAttendee(ctx context.Context, attendee *Attendee) error
	FindAttendeeByID(ctx context.Context, id string) (*Attendee, error)
	ListAttendeesByEvent(ctx context.Context, eventID string) ([]*Attendee, error)
	CountAttendeesByEvent(ctx context.Context, eventID string) (int64, error)
	CountCheckedInByEvent(ctx context.Context, eventID string) (int64, error)
	ExistsAttendee(ctx context.Context, eventID, email string) (bool, error)
	UpdateCheckedIn(ctx context.Context, id string, checkedIn bool) (*Attendee, error)
	DeleteAttendee(ctx context.Context, id string) (bool, error)
	DeleteAttendeesByEvent(ctx context.Context, eventID string) (int64, error)
}

// Repository is implemented by backends that store both events and attendees
type Repository interface {
	EventRepository
	AttendeeRepository
}

// CapacityGuard is implemented by repositories that can admit an attendee
// atomically with respect to the event's capacity. It returns
// ErrCapacityExceeded, ErrConflict or ErrEventNotFound.
type CapacityGuard interface {
	CreateAttendeeWithinCapacity(ctx context.Context, attendee *Attendee) error
}

// EventSink defines the interface for lifecycle notifications
type EventSink interface {
	// EventCreated is fired when an event is created
	EventCreated(ctx context.Context, event *Event) error

	// EventUpdated is fired when an event is updated
	EventUpdated(ctx context.Context, event *Event) error

	// EventDeleted is fired when an event and its attendees are deleted
	EventDeleted(ctx context.Context, eventID string, attendeesRemoved int64) error

	// AttendeeRegistered is fired when an attendee is admitted
	AttendeeRegistered(ctx context.Context, attendee *Attendee) error

	// RegistrationRejected is fired when admission control refuses a registration
	RegistrationRejected(ctx context.Context, eventID string, reason error) error

	// AttendeeCheckedIn is fired when an attendee's check-in state changes
	AttendeeCheckedIn(ctx context.Context, attendee *Attendee) error

	// BannerOrphaned is fired when a blob could not be deleted and is no
	// longer referenced by any record
	BannerOrphaned(ctx context.Context, key string, cause error) error
}
