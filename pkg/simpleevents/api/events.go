package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

// EventHandler handles HTTP requests for events
type EventHandler struct {
	service simpleevents.Service
	policy  UploadPolicy
	linkTTL time.Duration
}

// NewEventHandler creates a new event handler
func NewEventHandler(service simpleevents.Service, policy UploadPolicy, linkTTL time.Duration) *EventHandler {
	if linkTTL <= 0 {
		linkTTL = simpleevents.DefaultSignedURLTTL
	}
	return &EventHandler{
		service: service,
		policy:  policy,
		linkTTL: linkTTL,
	}
}

// Routes returns the routes for events
func (h *EventHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateEvent)
	r.Get("/", h.ListEvents)
	r.Get("/{id}", h.GetEvent)
	r.Put("/{id}", h.UpdateEvent)
	r.Delete("/{id}", h.DeleteEvent)
	r.Get("/{id}/attendees", h.GetEventAttendees)
	r.Get("/{id}/banner-url", h.GetBannerURL)

	return r
}

// EventPayload is the JSON body for creating or updating an event. Dates are
// RFC 3339 timestamps or YYYY-MM-DD dates.
type EventPayload struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
	Location    *string `json:"location,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// BannerURLResponse is returned by GET /events/{id}/banner-url
type BannerURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateEvent creates an event, with an optional banner when sent as multipart
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	payload, banner, closeBanner, err := h.readEvent(w, r)
	if err != nil {
		respondError(w, r, err, "Failed to create event")
		return
	}
	defer closeBanner()

	patch, err := payload.patch()
	if err != nil {
		respondError(w, r, err, "Failed to create event")
		return
	}

	req := simpleevents.CreateEventRequest{Banner: banner}
	if patch.Title != nil {
		req.Title = *patch.Title
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.StartDate != nil {
		req.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		req.EndDate = *patch.EndDate
	}
	if patch.Location != nil {
		req.Location = *patch.Location
	}
	if patch.Capacity != nil {
		req.Capacity = *patch.Capacity
	}

	event, err := h.service.CreateEvent(r.Context(), req)
	if err != nil {
		respondError(w, r, err, "Failed to create event")
		return
	}

	respondData(w, r, http.StatusCreated, "Event created successfully", event)
}

// ListEvents returns all events ordered by start date
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to fetch events")
		return
	}
	respondList(w, r, events)
}

// GetEvent returns an event with its attendees and stats
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetEventDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to fetch event")
		return
	}
	respondData(w, r, http.StatusOK, "", details)
}

// UpdateEvent applies the supplied fields and optionally replaces the banner
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	payload, banner, closeBanner, err := h.readEvent(w, r)
	if err != nil {
		respondError(w, r, err, "Failed to update event")
		return
	}
	defer closeBanner()

	patch, err := payload.patch()
	if err != nil {
		respondError(w, r, err, "Failed to update event")
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), simpleevents.UpdateEventRequest{
		ID:     chi.URLParam(r, "id"),
		Patch:  patch,
		Banner: banner,
	})
	if err != nil {
		respondError(w, r, err, "Failed to update event")
		return
	}

	respondData(w, r, http.StatusOK, "Event updated successfully", event)
}

// DeleteEvent removes an event, its attendees and its banner
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeleteEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to delete event")
		return
	}
	if !deleted {
		respondMessage(w, r, http.StatusNotFound, "Event not found")
		return
	}
	respondMessage(w, r, http.StatusOK, "Event deleted successfully")
}

// GetEventAttendees returns the attendees of an event with their stats
func (h *EventHandler) GetEventAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.service.GetEventAttendees(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to fetch attendees")
		return
	}
	respondData(w, r, http.StatusOK, "", attendees)
}

// GetBannerURL returns a time-limited URL for the event's banner.
// The ttl query parameter is a Go duration ("15m") or a number of seconds.
func (h *EventHandler) GetBannerURL(w http.ResponseWriter, r *http.Request) {
	ttl := h.linkTTL
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := parseTTL(raw)
		if err != nil {
			respondError(w, r, err, "Failed to sign banner URL")
			return
		}
		ttl = parsed
	}

	url, err := h.service.GetBannerURL(r.Context(), chi.URLParam(r, "id"), ttl)
	if err != nil {
		respondError(w, r, err, "Failed to sign banner URL")
		return
	}

	respondData(w, r, http.StatusOK, "", BannerURLResponse{URL: url, ExpiresAt: time.Now().Add(ttl).UTC()})
}

// readEvent decodes a JSON or multipart event body. closeBanner is always
// safe to call.
func (h *EventHandler) readEvent(w http.ResponseWriter, r *http.Request) (EventPayload, *simpleevents.BannerFile, func(), error) {
	noop := func() {}

	if !isMultipart(r) {
		var payload EventPayload
		if err := decodeJSON(w, r, &payload); err != nil {
			return payload, nil, noop, err
		}
		return payload, nil, noop, nil
	}

	if err := h.policy.parseMultipart(w, r); err != nil {
		return EventPayload{}, nil, noop, err
	}

	payload := EventPayload{
		Title:       formValue(r, "title"),
		Description: formValue(r, "description"),
		StartDate:   formValue(r, "startDate"),
		EndDate:     formValue(r, "endDate"),
		Location:    formValue(r, "location"),
	}
	if raw := formValue(r, "capacity"); raw != nil {
		capacity, err := strconv.Atoi(*raw)
		if err != nil {
			return payload, nil, noop, invalidField("capacity", "number")
		}
		payload.Capacity = &capacity
	}

	banner, file, err := h.policy.banner(r)
	if err != nil {
		return payload, nil, noop, err
	}
	if file == nil {
		return payload, nil, noop, nil
	}
	return payload, banner, func() { _ = file.Close() }, nil
}

// patch converts the payload into an event patch, parsing the dates
func (p EventPayload) patch() (simpleevents.EventPatch, error) {
	patch := simpleevents.EventPatch{
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		Capacity:    p.Capacity,
	}
	if p.StartDate != nil {
		t, err := parseTime(*p.StartDate)
		if err != nil {
			return patch, invalidField("startDate", "datetime")
		}
		patch.StartDate = &t
	}
	if p.EndDate != nil {
		t, err := parseTime(*p.EndDate)
		if err != nil {
			return patch, invalidField("endDate", "datetime")
		}
		patch.EndDate = &t
	}
	return patch, nil
}

// formValue returns nil for absent or empty fields, so that an empty form
// field leaves the current value in place on update.
func formValue(r *http.Request, key string) *string {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func parseTTL(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, invalidField("ttl", "duration")
}

func invalidField(field, rule string) error {
	return &simpleevents.ValidationError{Fields: []simpleevents.FieldError{{Field: field, Rule: rule}}}
}
