package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

// AttendeeHandler handles HTTP requests for attendees
type AttendeeHandler struct {
	service simpleevents.Service
}

// NewAttendeeHandler creates a new attendee handler
func NewAttendeeHandler(service simpleevents.Service) *AttendeeHandler {
	return &AttendeeHandler{service: service}
}

// Routes returns the routes for attendees
func (h *AttendeeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.RegisterAttendee)
	r.Get("/{id}", h.GetAttendee)
	r.Patch("/{id}/check-in", h.CheckInAttendee)
	r.Patch("/{id}/uncheck", h.UncheckAttendee)
	r.Delete("/{id}", h.DeleteAttendee)
	r.Get("/event/{eventId}", h.ListAttendeesByEvent)

	return r
}

// RegisterAttendeeRequest is the request body for registering an attendee
type RegisterAttendeeRequest struct {
	EventID string `json:"eventId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

// RegisterAttendee admits an attendee to an event
func (h *AttendeeHandler) RegisterAttendee(w http.ResponseWriter, r *http.Request) {
	var req RegisterAttendeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "Failed to register attendee")
		return
	}

	attendee, err := h.service.RegisterAttendee(r.Context(), simpleevents.RegisterAttendeeRequest{
		EventID: req.EventID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
	})
	if err != nil {
		respondError(w, r, err, "Failed to register attendee")
		return
	}

	respondData(w, r, http.StatusCreated, "Attendee registered successfully", attendee)
}

// GetAttendee returns one attendee with its event
func (h *AttendeeHandler) GetAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.service.GetAttendeeDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to fetch attendee")
		return
	}
	respondData(w, r, http.StatusOK, "", attendee)
}

// CheckInAttendee marks an attendee as checked in
func (h *AttendeeHandler) CheckInAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.service.CheckInAttendee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to check in attendee")
		return
	}
	respondData(w, r, http.StatusOK, "Attendee checked in successfully", attendee)
}

// UncheckAttendee clears an attendee's check-in
func (h *AttendeeHandler) UncheckAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.service.UncheckAttendee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to uncheck attendee")
		return
	}
	respondData(w, r, http.StatusOK, "Attendee unchecked successfully", attendee)
}

// DeleteAttendee removes an attendee
func (h *AttendeeHandler) DeleteAttendee(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeleteAttendee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to delete attendee")
		return
	}
	if !deleted {
		respondMessage(w, r, http.StatusNotFound, "Attendee not found")
		return
	}
	respondMessage(w, r, http.StatusOK, "Attendee deleted successfully")
}

// ListAttendeesByEvent returns the attendees of an event, newest first
func (h *AttendeeHandler) ListAttendeesByEvent(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.service.ListAttendeesByEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		respondError(w, r, err, "Failed to fetch attendees")
		return
	}
	respondList(w, r, attendees)
}
