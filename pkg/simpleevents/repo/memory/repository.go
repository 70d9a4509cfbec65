package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

// Repository implements simpleevents.Repository and simpleevents.CapacityGuard
// using in-memory storage
type Repository struct {
	mu             sync.RWMutex
	events         map[string]*simpleevents.Event
	attendees      map[string]*simpleevents.Attendee
	attendeesByKey map[string]string // eventID + "|" + email -> attendee id
	validator      *simpleevents.Validator
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		events:         make(map[string]*simpleevents.Event),
		attendees:      make(map[string]*simpleevents.Attendee),
		attendeesByKey: make(map[string]string),
		validator:      simpleevents.NewValidator(),
	}
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", simpleevents.ErrInvalidIdentifier
	}
	return parsed.String(), nil
}

func registrationKey(eventID, email string) string {
	return eventID + "|" + simpleevents.NormalizeEmail(email)
}

// Event operations

func (r *Repository) CreateEvent(ctx context.Context, event *simpleevents.Event) error {
	if err := r.validator.Event(event); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	event.ID = uuid.NewString()
	event.CreatedAt = now
	event.UpdatedAt = now

	// Create a copy to avoid external modifications
	eventCopy := *event
	r.events[event.ID] = &eventCopy

	return nil
}

func (r *Repository) FindEventByID(ctx context.Context, id string) (*simpleevents.Event, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, simpleevents.ErrEventNotFound
	}

	// Return a copy to prevent external modifications
	eventCopy := *event
	return &eventCopy, nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]*simpleevents.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleevents.Event, 0, len(r.events))
	for _, event := range r.events {
		eventCopy := *event
		result = append(result, &eventCopy)
	}

	// Sort by start date ascending
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartDate.Before(result[j].StartDate)
	})

	return result, nil
}

func (r *Repository) UpdateEvent(ctx context.Context, id string, patch simpleevents.EventPatch) (*simpleevents.Event, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.events[id]
	if !exists {
		return nil, simpleevents.ErrEventNotFound
	}

	updated := existing.Apply(patch)
	if err := r.validator.Event(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	r.events[id] = updated

	eventCopy := *updated
	return &eventCopy, nil
}

func (r *Repository) DeleteEvent(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[id]; !exists {
		return false, nil
	}
	delete(r.events, id)
	return true, nil
}

// Attendee operations

func (r *Repository) CreateAttendee(ctx context.Context, attendee *simpleevents.Attendee) error {
	if err := r.validator.Attendee(attendee); err != nil {
		return err
	}
	eventID, err := parseID(attendee.EventID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insertAttendeeLocked(eventID, attendee)
}

// CreateAttendeeWithinCapacity admits the attendee only while the event is below
// capacity. Count and insert happen under the same lock.
func (r *Repository) CreateAttendeeWithinCapacity(ctx context.Context, attendee *simpleevents.Attendee) error {
	if err := r.validator.Attendee(attendee); err != nil {
		return err
	}
	eventID, err := parseID(attendee.EventID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event, exists := r.events[eventID]
	if !exists {
		return simpleevents.ErrEventNotFound
	}
	if _, taken := r.attendeesByKey[registrationKey(eventID, attendee.Email)]; taken {
		return simpleevents.ErrConflict
	}
	if r.countLocked(eventID, false) >= int64(event.Capacity) {
		return simpleevents.ErrCapacityExceeded
	}

	return r.insertAttendeeLocked(eventID, attendee)
}

func (r *Repository) insertAttendeeLocked(eventID string, attendee *simpleevents.Attendee) error {
	if _, exists := r.events[eventID]; !exists {
		return simpleevents.ErrEventNotFound
	}

	key := registrationKey(eventID, attendee.Email)
	if _, taken := r.attendeesByKey[key]; taken {
		return simpleevents.ErrConflict
	}

	attendee.ID = uuid.NewString()
	attendee.EventID = eventID
	attendee.Email = simpleevents.NormalizeEmail(attendee.Email)
	attendee.RegisteredAt = time.Now().UTC()

	attendeeCopy := *attendee
	r.attendees[attendee.ID] = &attendeeCopy
	r.attendeesByKey[key] = attendee.ID

	return nil
}

func (r *Repository) FindAttendeeByID(ctx context.Context, id string) (*simpleevents.Attendee, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	attendee, exists := r.attendees[id]
	if !exists {
		return nil, simpleevents.ErrAttendeeNotFound
	}

	attendeeCopy := *attendee
	return &attendeeCopy, nil
}

func (r *Repository) ListAttendeesByEvent(ctx context.Context, eventID string) ([]*simpleevents.Attendee, error) {
	eventID, err := parseID(eventID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleevents.Attendee, 0)
	for _, attendee := range r.attendees {
		if attendee.EventID == eventID {
			attendeeCopy := *attendee
			result = append(result, &attendeeCopy)
		}
	}

	// Sort by registered_at descending
	sort.Slice(result, func(i, j int) bool {
		if result[i].RegisteredAt.Equal(result[j].RegisteredAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].RegisteredAt.After(result[j].RegisteredAt)
	})

	return result, nil
}

func (r *Repository) CountAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	eventID, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.countLocked(eventID, false), nil
}

func (r *Repository) CountCheckedInByEvent(ctx context.Context, eventID string) (int64, error) {
	eventID, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.countLocked(eventID, true), nil
}

func (r *Repository) countLocked(eventID string, checkedInOnly bool) int64 {
	var n int64
	for _, attendee := range r.attendees {
		if attendee.EventID == eventID && (!checkedInOnly || attendee.CheckedIn) {
			n++
		}
	}
	return n
}

func (r *Repository) ExistsAttendee(ctx context.Context, eventID, email string) (bool, error) {
	eventID, err := parseID(eventID)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.attendeesByKey[registrationKey(eventID, email)]
	return exists, nil
}

func (r *Repository) UpdateCheckedIn(ctx context.Context, id string, checkedIn bool) (*simpleevents.Attendee, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attendee, exists := r.attendees[id]
	if !exists {
		return nil, simpleevents.ErrAttendeeNotFound
	}
	attendee.CheckedIn = checkedIn

	attendeeCopy := *attendee
	return &attendeeCopy, nil
}

func (r *Repository) DeleteAttendee(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attendee, exists := r.attendees[id]
	if !exists {
		return false, nil
	}
	delete(r.attendeesByKey, registrationKey(attendee.EventID, attendee.Email))
	delete(r.attendees, id)
	return true, nil
}

func (r *Repository) DeleteAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	eventID, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, attendee := range r.attendees {
		if attendee.EventID == eventID {
			delete(r.attendeesByKey, registrationKey(attendee.EventID, attendee.Email))
			delete(r.attendees, id)
			removed++
		}
	}
	return removed, nil
}
