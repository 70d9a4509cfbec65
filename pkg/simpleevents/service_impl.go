package simpleevents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// service implements the Service interface
type service struct {
	events         EventRepository
	attendees      AttendeeRepository
	blobStore      BlobStore
	eventSink      EventSink
	logger         *slog.Logger
	validator      *Validator
	bannerFolder   string
	strictCapacity bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets one backend as both the event and the attendee repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.events = repo
		s.attendees = repo
	}
}

// WithEventRepository sets the event repository
func WithEventRepository(repo EventRepository) Option {
	return func(s *service) {
		s.events = repo
	}
}

// WithAttendeeRepository sets the attendee repository
func WithAttendeeRepository(repo AttendeeRepository) Option {
	return func(s *service) {
		s.attendees = repo
	}
}

// WithBlobStore sets the banner blob store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithBannerFolder sets the key prefix for uploaded banners
func WithBannerFolder(folder string) Option {
	return func(s *service) {
		s.bannerFolder = folder
	}
}

// WithStrictCapacity makes registration use the attendee repository's
// CapacityGuard, when it has one, instead of a count followed by an insert.
func WithStrictCapacity(strict bool) Option {
	return func(s *service) {
		s.strictCapacity = strict
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		bannerFolder: DefaultBannerFolder,
	}

	for _, option := range options {
		option(s)
	}

	if s.events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if s.attendees == nil {
		return nil, fmt.Errorf("attendee repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}

	return s, nil
}

// Event operations

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	event := &Event{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Capacity:    req.Capacity,
	}
	normalizeEvent(event)
	if err := s.validator.Event(event); err != nil {
		return nil, &EventError{Op: "create", Err: err}
	}

	// The banner is uploaded before the record exists so that the record is
	// never written pointing at a blob that failed to store.
	if req.Banner != nil {
		uploaded, err := s.uploadBanner(ctx, req.Banner)
		if err != nil {
			return nil, &EventError{Op: "create", Err: err}
		}
		event.BannerURL = uploaded.URL
		event.BannerKey = uploaded.Key
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		if event.HasBanner() {
			s.discardBlob(ctx, event.BannerKey, "create event failed")
		}
		return nil, &EventError{Op: "create", Err: err}
	}

	if err := s.eventSink.EventCreated(ctx, event); err != nil {
		s.logger.Warn("event sink failed", "hook", "EventCreated", "event_id", event.ID, "error", err)
	}

	return event, nil
}

func (s *service) GetEvent(ctx context.Context, id string) (*Event, error) {
	return s.events.FindEventByID(ctx, id)
}

func (s *service) ListEvents(ctx context.Context) ([]*Event, error) {
	return s.events.ListEvents(ctx)
}

func (s *service) UpdateEvent(ctx context.Context, req UpdateEventRequest) (*Event, error) {
	existing, err := s.events.FindEventByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	patch := trimPatch(req.Patch)
	patch.Banner = nil
	if err := s.validator.Patch(patch); err != nil {
		return nil, &EventError{EventID: req.ID, Op: "update", Err: err}
	}
	if err := s.validator.Event(existing.Apply(patch)); err != nil {
		return nil, &EventError{EventID: req.ID, Op: "update", Err: err}
	}

	// New banner first; the old one is only removed once nothing points at it.
	oldBanner := existing.Banner()
	if req.Banner != nil {
		uploaded, err := s.uploadBanner(ctx, req.Banner)
		if err != nil {
			return nil, &EventError{EventID: req.ID, Op: "update", Err: err}
		}
		patch.Banner = &Banner{URL: uploaded.URL, Key: uploaded.Key}
	}

	updated, err := s.events.UpdateEvent(ctx, req.ID, patch)
	if err != nil {
		if patch.Banner != nil {
			s.discardBlob(ctx, patch.Banner.Key, "update event failed")
		}
		if errors.Is(err, ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, &EventError{EventID: req.ID, Op: "update", Err: err}
	}

	if patch.Banner != nil && oldBanner != nil && oldBanner.Key != patch.Banner.Key {
		s.discardBlob(ctx, oldBanner.Key, "banner replaced")
	}

	if err := s.eventSink.EventUpdated(ctx, updated); err != nil {
		s.logger.Warn("event sink failed", "hook", "EventUpdated", "event_id", updated.ID, "error", err)
	}

	return updated, nil
}

func (s *service) DeleteEvent(ctx context.Context, id string) (bool, error) {
	event, err := s.events.FindEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return false, nil
		}
		return false, err
	}

	// An orphaned blob is preferable to an event that cannot be removed.
	if event.HasBanner() {
		s.discardBlob(ctx, event.BannerKey, "event deleted")
	}

	// Attendees go first: an interruption here leaves an empty event, never
	// attendees pointing at a missing one.
	removed, err := s.attendees.DeleteAttendeesByEvent(ctx, id)
	if err != nil {
		return false, &EventError{EventID: id, Op: "delete_attendees", Err: err}
	}

	deleted, err := s.events.DeleteEvent(ctx, id)
	if err != nil {
		return false, &EventError{EventID: id, Op: "delete", Err: err}
	}

	if deleted {
		if err := s.eventSink.EventDeleted(ctx, id, removed); err != nil {
			s.logger.Warn("event sink failed", "hook", "EventDeleted", "event_id", id, "error", err)
		}
	}

	return deleted, nil
}

func (s *service) GetEventAttendees(ctx context.Context, eventID string) (*EventAttendees, error) {
	var (
		result EventAttendees
		g, gctx = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		attendees, err := s.attendees.ListAttendeesByEvent(gctx, eventID)
		if err != nil {
			return err
		}
		result.Attendees = attendees
		return nil
	})
	g.Go(func() error {
		total, err := s.attendees.CountAttendeesByEvent(gctx, eventID)
		if err != nil {
			return err
		}
		result.Stats.Total = total
		return nil
	})
	g.Go(func() error {
		checkedIn, err := s.attendees.CountCheckedInByEvent(gctx, eventID)
		if err != nil {
			return err
		}
		result.Stats.CheckedIn = checkedIn
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if result.Attendees == nil {
		result.Attendees = []*Attendee{}
	}

	return &result, nil
}

func (s *service) GetEventDetails(ctx context.Context, id string) (*EventDetails, error) {
	event, err := s.events.FindEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	attendees, err := s.GetEventAttendees(ctx, id)
	if err != nil {
		return nil, err
	}

	return &EventDetails{
		Event:     event,
		Attendees: attendees.Attendees,
		Stats:     attendees.Stats,
	}, nil
}

func (s *service) GetBannerURL(ctx context.Context, eventID string, ttl time.Duration) (string, error) {
	event, err := s.events.FindEventByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	if !event.HasBanner() {
		return "", ErrNoBanner
	}
	if s.blobStore == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	return s.blobStore.SignedURL(ctx, event.BannerKey, ttl)
}

// Attendee operations

func (s *service) RegisterAttendee(ctx context.Context, req RegisterAttendeeRequest) (*Attendee, error) {
	attendee := &Attendee{
		EventID: req.EventID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
	}
	NormalizeAttendee(attendee)
	if attendee.EventID == "" {
		return nil, &AttendeeError{Op: "register", Err: ErrInvalidIdentifier}
	}
	if err := s.validator.Attendee(attendee); err != nil {
		return nil, &AttendeeError{Op: "register", Err: err}
	}

	event, err := s.events.FindEventByID(ctx, attendee.EventID)
	if err != nil {
		return nil, err
	}

	if err := s.admit(ctx, event, attendee); err != nil {
		if errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrDuplicateRegistration) {
			if serr := s.eventSink.RegistrationRejected(ctx, event.ID, err); serr != nil {
				s.logger.Warn("event sink failed", "hook", "RegistrationRejected", "event_id", event.ID, "error", serr)
			}
		}
		return nil, err
	}

	if err := s.eventSink.AttendeeRegistered(ctx, attendee); err != nil {
		s.logger.Warn("event sink failed", "hook", "AttendeeRegistered", "attendee_id", attendee.ID, "error", err)
	}

	return attendee, nil
}

// admit runs admission control and stores the attendee.
//
// The duplicate lookup runs before the capacity gate so that re-registering
// on a full event reports the duplicate. Both reads are advisory: the store's
// unique index decides duplicates, and capacity is only strict when a
// CapacityGuard is used.
func (s *service) admit(ctx context.Context, event *Event, attendee *Attendee) error {
	exists, err := s.attendees.ExistsAttendee(ctx, event.ID, attendee.Email)
	if err != nil {
		return &AttendeeError{Op: "register", Err: err}
	}
	if exists {
		return ErrDuplicateRegistration
	}

	if guard, ok := s.attendees.(CapacityGuard); ok && s.strictCapacity {
		err = guard.CreateAttendeeWithinCapacity(ctx, attendee)
	} else {
		var count int64
		count, err = s.attendees.CountAttendeesByEvent(ctx, event.ID)
		if err != nil {
			return &AttendeeError{Op: "register", Err: err}
		}
		if count >= int64(event.Capacity) {
			return ErrCapacityExceeded
		}
		err = s.attendees.CreateAttendee(ctx, attendee)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict):
		return ErrDuplicateRegistration
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrEventNotFound):
		return err
	default:
		return &AttendeeError{Op: "register", Err: err}
	}
}

func (s *service) GetAttendee(ctx context.Context, id string) (*Attendee, error) {
	return s.attendees.FindAttendeeByID(ctx, id)
}

// GetAttendeeDetails returns the attendee with its event loaded
func (s *service) GetAttendeeDetails(ctx context.Context, id string) (*AttendeeDetails, error) {
	attendee, err := s.attendees.FindAttendeeByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := s.events.FindEventByID(ctx, attendee.EventID)
	if errors.Is(err, ErrEventNotFound) {
		return &AttendeeDetails{Attendee: attendee}, nil
	}
	if err != nil {
		return nil, err
	}

	return &AttendeeDetails{Attendee: attendee, Event: event}, nil
}

func (s *service) ListAttendeesByEvent(ctx context.Context, eventID string) ([]*Attendee, error) {
	return s.attendees.ListAttendeesByEvent(ctx, eventID)
}

func (s *service) CheckInAttendee(ctx context.Context, id string) (*Attendee, error) {
	return s.setCheckedIn(ctx, id, true)
}

func (s *service) UncheckAttendee(ctx context.Context, id string) (*Attendee, error) {
	return s.setCheckedIn(ctx, id, false)
}

func (s *service) setCheckedIn(ctx context.Context, id string, checkedIn bool) (*Attendee, error) {
	attendee, err := s.attendees.UpdateCheckedIn(ctx, id, checkedIn)
	if err != nil {
		return nil, err
	}

	if err := s.eventSink.AttendeeCheckedIn(ctx, attendee); err != nil {
		s.logger.Warn("event sink failed", "hook", "AttendeeCheckedIn", "attendee_id", id, "error", err)
	}

	return attendee, nil
}

func (s *service) DeleteAttendee(ctx context.Context, id string) (bool, error) {
	return s.attendees.DeleteAttendee(ctx, id)
}

// Banner helpers

func (s *service) uploadBanner(ctx context.Context, file *BannerFile) (*UploadResult, error) {
	if file.Body == nil || file.FileName == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "banner", Rule: "required"}}}
	}
	if s.blobStore == nil {
		return nil, &StorageError{Op: StorageOpUpload, Key: file.FileName, Err: errors.New("no blob store configured")}
	}

	return s.blobStore.Upload(ctx, UploadParams{
		Folder:      s.bannerFolder,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        file.Size,
		Body:        file.Body,
	})
}

// discardBlob deletes a blob that no record references. Failure leaves an
// orphan, which is logged and reported but never returned to the caller.
func (s *service) discardBlob(ctx context.Context, key, reason string) {
	if s.blobStore == nil || key == "" {
		return
	}

	err := s.blobStore.Delete(ctx, key)
	if err == nil {
		return
	}

	s.logger.Error("failed to delete banner blob", "key", key, "reason", reason, "error", err)
	if serr := s.eventSink.BannerOrphaned(ctx, key, err); serr != nil {
		s.logger.Warn("event sink failed", "hook", "BannerOrphaned", "key", key, "error", serr)
	}
}
