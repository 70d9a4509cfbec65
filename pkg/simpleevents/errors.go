package simpleevents

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrValidation indicates a missing or out-of-range field
	ErrValidation = errors.New("validation failed")

	// ErrInvalidIdentifier indicates an id that is not in the datastore's identifier format
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrEventNotFound indicates an event was not found
	ErrEventNotFound = errors.New("event not found")

	// ErrAttendeeNotFound indicates an attendee was not found
	ErrAttendeeNotFound = errors.New("attendee not found")

	// ErrCapacityExceeded indicates the event has reached its capacity
	ErrCapacityExceeded = errors.New("event has reached maximum capacity")

	// ErrDuplicateRegistration indicates the email is already registered for the event
	ErrDuplicateRegistration = errors.New("attendee already registered for this event")

	// ErrConflict indicates a datastore uniqueness constraint rejected a write
	ErrConflict = errors.New("record already exists")

	// ErrStorageWrite indicates a blob upload failed
	ErrStorageWrite = errors.New("blob storage write failed")

	// ErrStorageDelete indicates a blob delete failed
	ErrStorageDelete = errors.New("blob storage delete failed")

	// ErrNoBanner indicates the event has no banner
	ErrNoBanner = errors.New("event has no banner")

	// ErrBlobNotFound indicates a blob store has no object at the key
	ErrBlobNotFound = errors.New("blob not found")
)

// FieldError describes one failing field of a ValidationError.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", f.Field, f.Rule, f.Param)
	}
	return fmt.Sprintf("%s failed %s", f.Field, f.Rule)
}

// ValidationError lists the fields that failed validation. It matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// EventError represents an error related to event operations
type EventError struct {
	EventID string
	Op      string
	Err     error
}

func (e *EventError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("event operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("event operation %s failed for event %s: %v", e.Op, e.EventID, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// AttendeeError represents an error related to attendee operations
type AttendeeError struct {
	AttendeeID string
	Op         string
	Err        error
}

func (e *AttendeeError) Error() string {
	if e.AttendeeID == "" {
		return fmt.Sprintf("attendee operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("attendee operation %s failed for attendee %s: %v", e.Op, e.AttendeeID, e.Err)
}

func (e *AttendeeError) Unwrap() error {
	return e.Err
}

// Storage operation names used in StorageError.Op
const (
	StorageOpUpload    = "upload"
	StorageOpDelete    = "delete"
	StorageOpSignedURL = "signed_url"
)

// StorageError represents an error related to blob storage operations.
// Upload failures match ErrStorageWrite and delete failures match ErrStorageDelete.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorageWrite:
		return e.Op == StorageOpUpload
	case ErrStorageDelete:
		return e.Op == StorageOpDelete
	}
	return false
}

// IsNotFound reports whether err signals an absent event or attendee.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrAttendeeNotFound)
}
