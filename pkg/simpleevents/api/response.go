package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

// Response is the envelope of every JSON response
type Response struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message,omitempty"`
	Count   *int                      `json:"count,omitempty"`
	Data    interface{}               `json:"data,omitempty"`
	Errors  []simpleevents.FieldError `json:"errors,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func respondData(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	respond(w, r, status, Response{Success: true, Message: message, Data: data})
}

func respondList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	respond(w, r, http.StatusOK, Response{Success: true, Count: &count, Data: items})
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, Response{Success: status < http.StatusBadRequest, Message: message})
}

// respondError maps err to a status code. Client errors carry the error's
// message; server errors are logged and answered with fallback.
func respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := StatusForError(err)
	resp := Response{Success: false, Message: fallback}

	var verr *simpleevents.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Message = verr.Error()
		resp.Errors = verr.Fields
	case status == http.StatusNotFound:
		resp.Message = notFoundMessage(err)
	case status < http.StatusInternalServerError:
		resp.Message = clientMessage(err)
	default:
		slog.Error(fallback, "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	respond(w, r, status, resp)
}

// StatusForError returns the HTTP status for an error returned by the service
func StatusForError(err error) int {
	switch {
	case errors.Is(err, simpleevents.ErrValidation),
		errors.Is(err, simpleevents.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case simpleevents.IsNotFound(err),
		errors.Is(err, simpleevents.ErrNoBanner):
		return http.StatusNotFound
	case errors.Is(err, simpleevents.ErrCapacityExceeded),
		errors.Is(err, simpleevents.ErrDuplicateRegistration):
		return http.StatusConflict
	case errors.Is(err, simpleevents.ErrStorageWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, simpleevents.ErrEventNotFound):
		return "Event not found"
	case errors.Is(err, simpleevents.ErrAttendeeNotFound):
		return "Attendee not found"
	case errors.Is(err, simpleevents.ErrNoBanner):
		return "Event has no banner"
	}
	return "Not found"
}

func clientMessage(err error) string {
	for _, sentinel := range []error{
		simpleevents.ErrInvalidIdentifier,
		simpleevents.ErrCapacityExceeded,
		simpleevents.ErrDuplicateRegistration,
		simpleevents.ErrStorageWrite,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
