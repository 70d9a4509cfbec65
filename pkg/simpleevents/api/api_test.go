package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
	"github.com/tendant/simple-events/pkg/simpleevents/repo/memory"
	memorystorage "github.com/tendant/simple-events/pkg/simpleevents/storage/memory"
)

type testServer struct {
	router http.Handler
	blobs  *memorystorage.Backend
	signer *presigned.Signer
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := presigned.New(
		presigned.WithSecretKey("test-secret"),
		presigned.WithBaseURL("http://example.test"),
	)
	blobs := memorystorage.New(memorystorage.WithSigner(signer))

	svc, err := simpleevents.New(
		simpleevents.WithRepository(memory.New()),
		simpleevents.WithBlobStore(blobs),
		simpleevents.WithLogger(logger),
	)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Service:   svc,
		BlobStore: blobs,
		Signer:    signer,
		Upload:    UploadPolicy{MaxFileSize: 64, AllowedTypes: []string{"image/png"}},
		Logger:    logger,
	})
	return &testServer{router: router, blobs: blobs, signer: signer}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (s *testServer) doJSON(t *testing.T, method, target string, payload interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return s.do(t, method, target, body, "application/json")
}

// decodeData re-decodes the envelope's data field into out
func decodeData(t *testing.T, resp Response, out interface{}) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func eventJSON(capacity int) map[string]interface{} {
	return map[string]interface{}{
		"title":       "Go Meetup",
		"description": "Monthly meetup",
		"startDate":   "2030-06-01T18:00:00Z",
		"endDate":     "2030-06-01T20:00:00Z",
		"location":    "Community Hall",
		"capacity":    capacity,
	}
}

func multipartEvent(t *testing.T, fields map[string]string, fileName, fileType string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="banner"; filename="%s"`, fileName))
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func createEvent(t *testing.T, s *testServer, capacity int) simpleevents.Event {
	t.Helper()
	w, resp := s.doJSON(t, http.MethodPost, "/events", eventJSON(capacity))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var event simpleevents.Event
	decodeData(t, resp, &event)
	return event
}

func TestCreateEventJSON(t *testing.T) {
	s := setupTestServer(t)

	w, resp := s.doJSON(t, http.MethodPost, "/events", eventJSON(10))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Event created successfully", resp.Message)

	var event simpleevents.Event
	decodeData(t, resp, &event)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, 10, event.Capacity)
	assert.Empty(t, event.BannerKey)
}

func TestCreateEventValidation(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"zero capacity", func(m map[string]interface{}) { m["capacity"] = 0 }},
		{"missing title", func(m map[string]interface{}) { delete(m, "title") }},
		{"bad date", func(m map[string]interface{}) { m["startDate"] = "next tuesday" }},
		{"end before start", func(m map[string]interface{}) { m["endDate"] = "2030-05-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := eventJSON(5)
			tt.mutate(payload)
			w, resp := s.doJSON(t, http.MethodPost, "/events", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Errors)
		})
	}

	w, _ := s.do(t, http.MethodPost, "/events", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOversizedJSONBody(t *testing.T) {
	s := setupTestServer(t)
	body := `{"title":"` + strings.Repeat("a", maxJSONBody+1) + `"}`

	for _, target := range []string{"/events", "/attendees"} {
		t.Run(target, func(t *testing.T) {
			w, resp := s.do(t, http.MethodPost, target, strings.NewReader(body), "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, "body", resp.Errors[0].Field)
			assert.Equal(t, "max", resp.Errors[0].Rule)
		})
	}

	event := createEvent(t, s, 5)
	w, resp := s.do(t, http.MethodPut, "/events/"+event.ID, strings.NewReader(body), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "max", resp.Errors[0].Rule)
}

func TestCreateEventMultipart(t *testing.T) {
	s := setupTestServer(t)
	fields := map[string]string{
		"title":       "Poster Night",
		"description": "Bring posters",
		"startDate":   "2030-06-01",
		"endDate":     "2030-06-02",
		"location":    "Gallery",
		"capacity":    "20",
	}

	t.Run("with banner", func(t *testing.T) {
		body, ct := multipartEvent(t, fields, "poster.png", "image/png", []byte("png-bytes"))
		w, resp := s.do(t, http.MethodPost, "/events", body, ct)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var event simpleevents.Event
		decodeData(t, resp, &event)
		assert.Equal(t, 20, event.Capacity)
		assert.True(t, s.blobs.Exists(event.BannerKey))
		assert.True(t, strings.HasPrefix(event.BannerURL, "http://example.test/files/"))
	})

	t.Run("rejected type", func(t *testing.T) {
		body, ct := multipartEvent(t, fields, "poster.gif", "image/gif", []byte("gif"))
		w, resp := s.do(t, http.MethodPost, "/events", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "mimetype", resp.Errors[0].Rule)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartEvent(t, fields, "poster.png", "image/png", bytes.Repeat([]byte("x"), 65))
		w, resp := s.do(t, http.MethodPost, "/events", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "max", resp.Errors[0].Rule)
	})

	t.Run("bad capacity", func(t *testing.T) {
		bad := map[string]string{}
		for k, v := range fields {
			bad[k] = v
		}
		bad["capacity"] = "many"
		body, ct := multipartEvent(t, bad, "", "", nil)
		w, _ := s.do(t, http.MethodPost, "/events", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEventLifecycle(t *testing.T) {
	s := setupTestServer(t)
	event := createEvent(t, s, 10)

	w, resp := s.do(t, http.MethodGet, "/events", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 1, *resp.Count)

	w, resp = s.doJSON(t, http.MethodPut, "/events/"+event.ID, map[string]interface{}{"location": "Library"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event updated successfully", resp.Message)
	var updated simpleevents.Event
	decodeData(t, resp, &updated)
	assert.Equal(t, "Library", updated.Location)
	assert.Equal(t, event.Title, updated.Title)

	w, resp = s.do(t, http.MethodGet, "/events/"+event.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var details struct {
		ID        string                     `json:"id"`
		Attendees []simpleevents.Attendee    `json:"attendees"`
		Stats     simpleevents.AttendeeStats `json:"stats"`
	}
	decodeData(t, resp, &details)
	assert.Equal(t, event.ID, details.ID)
	assert.Empty(t, details.Attendees)

	w, resp = s.do(t, http.MethodDelete, "/events/"+event.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event deleted successfully", resp.Message)

	w, resp = s.do(t, http.MethodDelete, "/events/"+event.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", resp.Message)

	w, resp = s.do(t, http.MethodGet, "/events/"+event.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", resp.Message)

	w, _ = s.do(t, http.MethodGet, "/events/not-an-id", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendeeFlow(t *testing.T) {
	s := setupTestServer(t)
	event := createEvent(t, s, 1)

	register := func(email string) (*httptest.ResponseRecorder, Response) {
		return s.doJSON(t, http.MethodPost, "/attendees", RegisterAttendeeRequest{
			EventID: event.ID,
			Name:    "Guest",
			Email:   email,
		})
	}

	w, resp := register("A1@example.com")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var attendee simpleevents.Attendee
	decodeData(t, resp, &attendee)
	assert.Equal(t, "a1@example.com", attendee.Email)

	w, resp = register("a2@example.com")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, simpleevents.ErrCapacityExceeded.Error(), resp.Message)

	w, resp = register("a1@example.com")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, simpleevents.ErrDuplicateRegistration.Error(), resp.Message)

	w, _ = register("not-an-email")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodPatch, "/attendees/"+attendee.ID+"/check-in", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Attendee checked in successfully", resp.Message)

	w, resp = s.do(t, http.MethodGet, "/events/"+event.ID+"/attendees", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var listing simpleevents.EventAttendees
	decodeData(t, resp, &listing)
	assert.Equal(t, int64(1), listing.Stats.Total)
	assert.Equal(t, int64(1), listing.Stats.CheckedIn)

	w, _ = s.do(t, http.MethodPatch, "/attendees/"+attendee.ID+"/uncheck", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodGet, "/attendees/event/"+event.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 1, *resp.Count)

	w, resp = s.do(t, http.MethodGet, "/attendees/"+attendee.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var details simpleevents.AttendeeDetails
	decodeData(t, resp, &details)
	require.NotNil(t, details.Attendee)
	assert.Equal(t, attendee.ID, details.ID)
	require.NotNil(t, details.Event)
	assert.Equal(t, event.ID, details.Event.ID)
	assert.Equal(t, event.Title, details.Event.Title)

	w, _ = s.do(t, http.MethodDelete, "/attendees/"+attendee.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(t, http.MethodDelete, "/attendees/"+attendee.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Attendee not found", resp.Message)

	w, resp = s.do(t, http.MethodGet, "/attendees/"+attendee.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Attendee not found", resp.Message)
}

func TestBannerURLAndFiles(t *testing.T) {
	s := setupTestServer(t)

	plain := createEvent(t, s, 5)
	w, _ := s.do(t, http.MethodGet, "/events/"+plain.ID+"/banner-url", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, ct := multipartEvent(t, map[string]string{
		"title":       "Poster Night",
		"description": "Bring posters",
		"startDate":   "2030-06-01",
		"endDate":     "2030-06-02",
		"location":    "Gallery",
		"capacity":    "20",
	}, "poster.png", "image/png", []byte("png-bytes"))
	w, resp := s.do(t, http.MethodPost, "/events", body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	var event simpleevents.Event
	decodeData(t, resp, &event)

	w, resp = s.do(t, http.MethodGet, "/events/"+event.ID+"/banner-url?ttl=10m", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var link BannerURLResponse
	decodeData(t, resp, &link)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), link.ExpiresAt, time.Minute)

	w, _ = s.do(t, http.MethodGet, "/events/"+event.ID+"/banner-url?ttl=soon", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The signed link is served by /files/
	signed, err := url.Parse(link.URL)
	require.NoError(t, err)
	w, _ = s.do(t, http.MethodGet, signed.RequestURI(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	// A tampered signature is rejected
	q := signed.Query()
	q.Set("signature", "deadbeef")
	signed.RawQuery = q.Encode()
	w, _ = s.do(t, http.MethodGet, signed.RequestURI(), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/files/event-banners/missing.png", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&simpleevents.ValidationError{}, http.StatusBadRequest},
		{simpleevents.ErrInvalidIdentifier, http.StatusBadRequest},
		{simpleevents.ErrEventNotFound, http.StatusNotFound},
		{&simpleevents.AttendeeError{Op: "get", Err: simpleevents.ErrAttendeeNotFound}, http.StatusNotFound},
		{simpleevents.ErrNoBanner, http.StatusNotFound},
		{simpleevents.ErrCapacityExceeded, http.StatusConflict},
		{simpleevents.ErrDuplicateRegistration, http.StatusConflict},
		{&simpleevents.StorageError{Op: simpleevents.StorageOpUpload, Err: fmt.Errorf("down")}, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestHealthzAndNotFound(t *testing.T) {
	s := setupTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	w, resp := s.do(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", resp.Message)
}
