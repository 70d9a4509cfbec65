package simpleevents

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator checks events, patches and attendees against their field rules.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator. Field names in errors use the JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Event validates a complete event record.
func (v *Validator) Event(event *Event) error {
	if event == nil {
		return &ValidationError{Fields: []FieldError{{Field: "event", Rule: "required"}}}
	}
	return v.check(event)
}

// Patch validates the supplied fields of an event patch on their own.
// Cross-field rules are checked by Event on the merged record.
func (v *Validator) Patch(patch EventPatch) error {
	if err := v.check(patch); err != nil {
		return err
	}
	if patch.StartDate != nil && patch.EndDate != nil && patch.EndDate.Before(*patch.StartDate) {
		return &ValidationError{Fields: []FieldError{{Field: "endDate", Rule: "gtefield", Param: "startDate"}}}
	}
	return nil
}

// Attendee validates an attendee record. The email must already be normalized.
func (v *Validator) Attendee(attendee *Attendee) error {
	if attendee == nil {
		return &ValidationError{Fields: []FieldError{{Field: "attendee", Rule: "required"}}}
	}
	return v.check(attendee)
}

func (v *Validator) check(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// normalizeEvent trims free-text fields in place.
func normalizeEvent(event *Event) {
	event.Title = strings.TrimSpace(event.Title)
	event.Description = strings.TrimSpace(event.Description)
	event.Location = strings.TrimSpace(event.Location)
}

// NormalizeAttendee trims free-text fields and normalizes the email in place.
func NormalizeAttendee(attendee *Attendee) {
	attendee.EventID = strings.TrimSpace(attendee.EventID)
	attendee.Name = strings.TrimSpace(attendee.Name)
	attendee.Email = NormalizeEmail(attendee.Email)
	attendee.Phone = strings.TrimSpace(attendee.Phone)
}

func trimPatch(patch EventPatch) EventPatch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	patch.Title = trim(patch.Title)
	patch.Description = trim(patch.Description)
	patch.Location = trim(patch.Location)
	return patch
}
