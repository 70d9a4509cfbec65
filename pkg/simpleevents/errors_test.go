package simpleevents

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageErrorMatching(t *testing.T) {
	cause := errors.New("boom")

	upload := &StorageError{Backend: "s3", Key: "k", Op: StorageOpUpload, Err: cause}
	assert.ErrorIs(t, upload, ErrStorageWrite)
	assert.NotErrorIs(t, upload, ErrStorageDelete)
	assert.ErrorIs(t, upload, cause)

	del := &StorageError{Backend: "fs", Key: "k", Op: StorageOpDelete, Err: cause}
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", del), ErrStorageDelete)
	assert.NotErrorIs(t, del, ErrStorageWrite)

	signed := &StorageError{Op: StorageOpSignedURL, Err: ErrBlobNotFound}
	assert.ErrorIs(t, signed, ErrBlobNotFound)
	assert.NotErrorIs(t, signed, ErrStorageWrite)
}

func TestWrappedErrors(t *testing.T) {
	err := &EventError{EventID: "e1", Op: "update", Err: &ValidationError{Fields: []FieldError{{Field: "title", Rule: "notblank"}}}}
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "e1")
	assert.Contains(t, err.Error(), "title failed notblank")

	aerr := &AttendeeError{Op: "register", Err: ErrAttendeeNotFound}
	assert.True(t, IsNotFound(aerr))
	assert.True(t, IsNotFound(ErrEventNotFound))
	assert.False(t, IsNotFound(ErrConflict))
}

func TestFieldErrorString(t *testing.T) {
	assert.Equal(t, "capacity failed min=1", FieldError{Field: "capacity", Rule: "min", Param: "1"}.String())
	assert.Equal(t, "name failed required", FieldError{Field: "name", Rule: "required"}.String())
}
