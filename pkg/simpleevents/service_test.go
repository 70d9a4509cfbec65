package simpleevents_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/repo/memory"
	memorystorage "github.com/tendant/simple-events/pkg/simpleevents/storage/memory"
)

// flakyBlobStore wraps the memory backend and fails on demand
type flakyBlobStore struct {
	*memorystorage.Backend
	mu          sync.Mutex
	failUpload  bool
	failDelete  bool
	deleteCalls []string
}

func newFlakyBlobStore() *flakyBlobStore {
	return &flakyBlobStore{Backend: memorystorage.New()}
}

func (f *flakyBlobStore) Upload(ctx context.Context, params simpleevents.UploadParams) (*simpleevents.UploadResult, error) {
	f.mu.Lock()
	fail := f.failUpload
	f.mu.Unlock()
	if fail {
		return nil, &simpleevents.StorageError{Backend: "flaky", Op: simpleevents.StorageOpUpload, Err: errors.New("connection refused")}
	}
	return f.Backend.Upload(ctx, params)
}

func (f *flakyBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, key)
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return &simpleevents.StorageError{Backend: "flaky", Key: key, Op: simpleevents.StorageOpDelete, Err: errors.New("timeout")}
	}
	return f.Backend.Delete(ctx, key)
}

func (f *flakyBlobStore) deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleteCalls...)
}

// recordingSink remembers orphaned keys and rejection reasons
type recordingSink struct {
	simpleevents.NoopEventSink
	mu       sync.Mutex
	orphans  []string
	rejected []error
	deleted  map[string]int64
}

func (s *recordingSink) BannerOrphaned(ctx context.Context, key string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans = append(s.orphans, key)
	return nil
}

func (s *recordingSink) RegistrationRejected(ctx context.Context, eventID string, reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, reason)
	return nil
}

func (s *recordingSink) EventDeleted(ctx context.Context, eventID string, attendeesRemoved int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted == nil {
		s.deleted = make(map[string]int64)
	}
	s.deleted[eventID] = attendeesRemoved
	return nil
}

// failingEventRepo fails writes of events on demand
type failingEventRepo struct {
	*memory.Repository
	failCreate bool
	failUpdate bool
}

func (r *failingEventRepo) CreateEvent(ctx context.Context, event *simpleevents.Event) error {
	if r.failCreate {
		return errors.New("datastore unavailable")
	}
	return r.Repository.CreateEvent(ctx, event)
}

func (r *failingEventRepo) UpdateEvent(ctx context.Context, id string, patch simpleevents.EventPatch) (*simpleevents.Event, error) {
	if r.failUpdate {
		return nil, errors.New("datastore unavailable")
	}
	return r.Repository.UpdateEvent(ctx, id, patch)
}

type testEnv struct {
	svc   simpleevents.Service
	repo  *memory.Repository
	blobs *flakyBlobStore
	sink  *recordingSink
}

func setupTestService(t *testing.T, opts ...simpleevents.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:  memory.New(),
		blobs: newFlakyBlobStore(),
		sink:  &recordingSink{},
	}

	options := append([]simpleevents.Option{
		simpleevents.WithRepository(env.repo),
		simpleevents.WithBlobStore(env.blobs),
		simpleevents.WithEventSink(env.sink),
		simpleevents.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	svc, err := simpleevents.New(options...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func eventRequest(capacity int) simpleevents.CreateEventRequest {
	start := time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC)
	return simpleevents.CreateEventRequest{
		Title:       "Go Meetup",
		Description: "Monthly meetup",
		StartDate:   start,
		EndDate:     start.Add(2 * time.Hour),
		Location:    "Community Hall",
		Capacity:    capacity,
	}
}

func banner(name string) *simpleevents.BannerFile {
	return &simpleevents.BannerFile{
		FileName:    name,
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("png!"),
	}
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simpleevents.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simpleevents.Option{},
			expectError: true,
		},
		{
			name: "event repository alone should fail",
			options: []simpleevents.Option{
				simpleevents.WithEventRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "with repository should succeed",
			options: []simpleevents.Option{
				simpleevents.WithRepository(memory.New()),
			},
			expectError: false,
		},
		{
			name: "with split repositories and blob store should succeed",
			options: []simpleevents.Option{
				simpleevents.WithEventRepository(memory.New()),
				simpleevents.WithAttendeeRepository(memory.New()),
				simpleevents.WithBlobStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simpleevents.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("without banner has neither banner field", func(t *testing.T) {
		env := setupTestService(t)

		event, err := env.svc.CreateEvent(ctx, eventRequest(10))
		require.NoError(t, err)
		assert.NotEmpty(t, event.ID)
		assert.Empty(t, event.BannerURL)
		assert.Empty(t, event.BannerKey)
		assert.Equal(t, 0, env.blobs.Len())
	})

	t.Run("with banner stores blob first", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("poster.png")

		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(event.BannerKey, simpleevents.DefaultBannerFolder+"/"))
		assert.NotEmpty(t, event.BannerURL)
		assert.True(t, env.blobs.Exists(event.BannerKey))
	})

	t.Run("custom banner folder", func(t *testing.T) {
		env := setupTestService(t, simpleevents.WithBannerFolder("posters"))
		req := eventRequest(10)
		req.Banner = banner("poster.png")

		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(event.BannerKey, "posters/"))
	})

	t.Run("trims text fields", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Title = "  Go Meetup  "

		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Go Meetup", event.Title)
	})

	t.Run("validation runs before upload", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(0)
		req.Banner = banner("poster.png")

		_, err := env.svc.CreateEvent(ctx, req)
		assert.ErrorIs(t, err, simpleevents.ErrValidation)
		assert.Equal(t, 0, env.blobs.Len())
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(5)
		req.EndDate = req.StartDate.Add(-time.Minute)

		_, err := env.svc.CreateEvent(ctx, req)
		assert.ErrorIs(t, err, simpleevents.ErrValidation)
	})

	t.Run("upload failure creates nothing", func(t *testing.T) {
		env := setupTestService(t)
		env.blobs.failUpload = true
		req := eventRequest(10)
		req.Banner = banner("poster.png")

		_, err := env.svc.CreateEvent(ctx, req)
		assert.ErrorIs(t, err, simpleevents.ErrStorageWrite)

		events, err := env.svc.ListEvents(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("persist failure removes the fresh blob", func(t *testing.T) {
		repo := &failingEventRepo{Repository: memory.New(), failCreate: true}
		blobs := newFlakyBlobStore()
		svc, err := simpleevents.New(
			simpleevents.WithEventRepository(repo),
			simpleevents.WithAttendeeRepository(repo.Repository),
			simpleevents.WithBlobStore(blobs),
			simpleevents.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		require.NoError(t, err)

		req := eventRequest(10)
		req.Banner = banner("poster.png")
		_, err = svc.CreateEvent(ctx, req)
		assert.Error(t, err)

		assert.Len(t, blobs.deletes(), 1)
		assert.Equal(t, 0, blobs.Len())
	})
}

func TestUpdateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("patches only supplied fields", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(10))
		require.NoError(t, err)

		location := "Library"
		updated, err := env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{
			ID:    event.ID,
			Patch: simpleevents.EventPatch{Location: &location},
		})
		require.NoError(t, err)
		assert.Equal(t, "Library", updated.Location)
		assert.Equal(t, event.Title, updated.Title)
		assert.Equal(t, event.Capacity, updated.Capacity)
	})

	t.Run("merged record is validated", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(10))
		require.NoError(t, err)

		end := event.StartDate.Add(-time.Hour)
		_, err = env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{
			ID:     event.ID,
			Patch:  simpleevents.EventPatch{EndDate: &end},
			Banner: banner("new.png"),
		})
		assert.ErrorIs(t, err, simpleevents.ErrValidation)
		assert.Equal(t, 0, env.blobs.Len())
	})

	t.Run("missing event", func(t *testing.T) {
		env := setupTestService(t)
		_, err := env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{ID: uuid.NewString()})
		assert.ErrorIs(t, err, simpleevents.ErrEventNotFound)
	})

	t.Run("banner replacement deletes old blob", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("old.png")
		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)
		k1 := event.BannerKey

		updated, err := env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{ID: event.ID, Banner: banner("new.png")})
		require.NoError(t, err)
		k2 := updated.BannerKey

		assert.NotEqual(t, k1, k2)
		assert.True(t, env.blobs.Exists(k2))
		assert.False(t, env.blobs.Exists(k1))
		assert.Equal(t, []string{k1}, env.blobs.deletes())
		assert.Equal(t, 1, env.blobs.Len())

		stored, err := env.svc.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, k2, stored.BannerKey)
		assert.Equal(t, updated.BannerURL, stored.BannerURL)
	})

	t.Run("old blob delete failure keeps new banner", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("old.png")
		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)
		k1 := event.BannerKey

		env.blobs.failDelete = true
		updated, err := env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{ID: event.ID, Banner: banner("new.png")})
		require.NoError(t, err)
		k2 := updated.BannerKey

		stored, err := env.svc.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, k2, stored.BannerKey)
		assert.True(t, env.blobs.Exists(k2))
		assert.Equal(t, []string{k1}, env.blobs.deletes())
		assert.Equal(t, []string{k1}, env.sink.orphans)
	})

	t.Run("upload failure leaves record untouched", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("old.png")
		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)

		env.blobs.failUpload = true
		title := "Renamed"
		_, err = env.svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{
			ID:     event.ID,
			Patch:  simpleevents.EventPatch{Title: &title},
			Banner: banner("new.png"),
		})
		assert.ErrorIs(t, err, simpleevents.ErrStorageWrite)

		stored, err := env.svc.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go Meetup", stored.Title)
		assert.Equal(t, event.BannerKey, stored.BannerKey)
		assert.Empty(t, env.blobs.deletes())
	})

	t.Run("record update failure removes new blob", func(t *testing.T) {
		repo := &failingEventRepo{Repository: memory.New()}
		blobs := newFlakyBlobStore()
		svc, err := simpleevents.New(
			simpleevents.WithEventRepository(repo),
			simpleevents.WithAttendeeRepository(repo.Repository),
			simpleevents.WithBlobStore(blobs),
			simpleevents.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		require.NoError(t, err)

		req := eventRequest(10)
		req.Banner = banner("old.png")
		event, err := svc.CreateEvent(ctx, req)
		require.NoError(t, err)

		repo.failUpdate = true
		_, err = svc.UpdateEvent(ctx, simpleevents.UpdateEventRequest{ID: event.ID, Banner: banner("new.png")})
		assert.Error(t, err)

		// Only the original banner remains, and the record still points at it
		assert.Equal(t, 1, blobs.Len())
		assert.True(t, blobs.Exists(event.BannerKey))
		require.Len(t, blobs.deletes(), 1)
		assert.NotEqual(t, event.BannerKey, blobs.deletes()[0])
	})
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades and is idempotent", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("poster.png")
		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{
				EventID: event.ID,
				Name:    fmt.Sprintf("Guest %d", i),
				Email:   fmt.Sprintf("guest%d@example.com", i),
			})
			require.NoError(t, err)
		}

		deleted, err := env.svc.DeleteEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		count, err := env.repo.CountAttendeesByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.False(t, env.blobs.Exists(event.BannerKey))
		assert.Equal(t, int64(3), env.sink.deleted[event.ID])

		deleted, err = env.svc.DeleteEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("unknown id returns false", func(t *testing.T) {
		env := setupTestService(t)
		deleted, err := env.svc.DeleteEvent(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("malformed id is an error", func(t *testing.T) {
		env := setupTestService(t)
		_, err := env.svc.DeleteEvent(ctx, "nope")
		assert.ErrorIs(t, err, simpleevents.ErrInvalidIdentifier)
	})

	t.Run("blob delete failure does not abort", func(t *testing.T) {
		env := setupTestService(t)
		req := eventRequest(10)
		req.Banner = banner("poster.png")
		event, err := env.svc.CreateEvent(ctx, req)
		require.NoError(t, err)

		env.blobs.failDelete = true
		deleted, err := env.svc.DeleteEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, []string{event.BannerKey}, env.sink.orphans)

		_, err = env.svc.GetEvent(ctx, event.ID)
		assert.ErrorIs(t, err, simpleevents.ErrEventNotFound)
	})
}

func TestRegisterAttendee(t *testing.T) {
	ctx := context.Background()

	t.Run("capacity and duplicate scenario", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(1))
		require.NoError(t, err)

		alice, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Alice", Email: "alice@x.com"})
		require.NoError(t, err)
		assert.False(t, alice.CheckedIn)
		assert.False(t, alice.RegisteredAt.IsZero())

		_, err = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Bob", Email: "bob@x.com"})
		assert.ErrorIs(t, err, simpleevents.ErrCapacityExceeded)

		_, err = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Alice", Email: "alice@x.com"})
		assert.ErrorIs(t, err, simpleevents.ErrDuplicateRegistration)

		require.Len(t, env.sink.rejected, 2)
		assert.ErrorIs(t, env.sink.rejected[0], simpleevents.ErrCapacityExceeded)
		assert.ErrorIs(t, env.sink.rejected[1], simpleevents.ErrDuplicateRegistration)
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(10))
		require.NoError(t, err)

		first, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Alice", Email: "  Alice@X.com "})
		require.NoError(t, err)
		assert.Equal(t, "alice@x.com", first.Email)

		_, err = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Alice", Email: "ALICE@x.com"})
		assert.ErrorIs(t, err, simpleevents.ErrDuplicateRegistration)

		count, err := env.repo.CountAttendeesByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("concurrent duplicates store one record", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(100))
		require.NoError(t, err)

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			successes  int
			duplicates int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Alice", Email: "alice@x.com"})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else if errors.Is(err, simpleevents.ErrDuplicateRegistration) {
					duplicates++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 19, duplicates)
	})

	t.Run("strict capacity holds under concurrency", func(t *testing.T) {
		env := setupTestService(t, simpleevents.WithStrictCapacity(true))
		event, err := env.svc.CreateEvent(ctx, eventRequest(3))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{
					EventID: event.ID,
					Name:    "Guest",
					Email:   fmt.Sprintf("guest%d@x.com", i),
				})
			}(i)
		}
		wg.Wait()

		count, err := env.repo.CountAttendeesByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("validation", func(t *testing.T) {
		env := setupTestService(t)
		event, err := env.svc.CreateEvent(ctx, eventRequest(10))
		require.NoError(t, err)

		tests := []struct {
			name string
			req  simpleevents.RegisterAttendeeRequest
		}{
			{name: "blank name", req: simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "  ", Email: "a@x.com"}},
			{name: "bad email", req: simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "A", Email: "not-an-email"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.svc.RegisterAttendee(ctx, tt.req)
				assert.ErrorIs(t, err, simpleevents.ErrValidation)
			})
		}
	})

	t.Run("unknown and malformed event", func(t *testing.T) {
		env := setupTestService(t)

		_, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: uuid.NewString(), Name: "A", Email: "a@x.com"})
		assert.ErrorIs(t, err, simpleevents.ErrEventNotFound)

		_, err = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: "123", Name: "A", Email: "a@x.com"})
		assert.ErrorIs(t, err, simpleevents.ErrInvalidIdentifier)

		for _, id := range []string{"", "   "} {
			_, err = env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: id, Name: "A", Email: "a@x.com"})
			assert.ErrorIs(t, err, simpleevents.ErrInvalidIdentifier, "event id %q", id)
			assert.NotErrorIs(t, err, simpleevents.ErrValidation)
		}
	})
}

func TestAttendeeOperations(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	event, err := env.svc.CreateEvent(ctx, eventRequest(10))
	require.NoError(t, err)

	ada, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Ada", Email: "ada@x.com", Phone: "555-0100"})
	require.NoError(t, err)
	bob, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)

	t.Run("CheckIn and Uncheck", func(t *testing.T) {
		checked, err := env.svc.CheckInAttendee(ctx, ada.ID)
		require.NoError(t, err)
		assert.True(t, checked.CheckedIn)

		unchecked, err := env.svc.UncheckAttendee(ctx, bob.ID)
		require.NoError(t, err)
		assert.False(t, unchecked.CheckedIn)

		_, err = env.svc.CheckInAttendee(ctx, uuid.NewString())
		assert.ErrorIs(t, err, simpleevents.ErrAttendeeNotFound)
	})

	t.Run("GetEventAttendees", func(t *testing.T) {
		result, err := env.svc.GetEventAttendees(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, result.Attendees, 2)
		assert.Equal(t, int64(2), result.Stats.Total)
		assert.Equal(t, int64(1), result.Stats.CheckedIn)
	})

	t.Run("GetEventDetails", func(t *testing.T) {
		details, err := env.svc.GetEventDetails(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, event.ID, details.ID)
		assert.Len(t, details.Attendees, 2)
		assert.Equal(t, int64(1), details.Stats.CheckedIn)

		_, err = env.svc.GetEventDetails(ctx, uuid.NewString())
		assert.ErrorIs(t, err, simpleevents.ErrEventNotFound)
	})

	t.Run("GetAttendee and List", func(t *testing.T) {
		got, err := env.svc.GetAttendee(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, "555-0100", got.Phone)

		list, err := env.svc.ListAttendeesByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("GetAttendeeDetails", func(t *testing.T) {
		details, err := env.svc.GetAttendeeDetails(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, ada.ID, details.ID)
		require.NotNil(t, details.Event)
		assert.Equal(t, event.ID, details.Event.ID)
		assert.Equal(t, "Go Meetup", details.Event.Title)

		_, err = env.svc.GetAttendeeDetails(ctx, uuid.NewString())
		assert.ErrorIs(t, err, simpleevents.ErrAttendeeNotFound)

		_, err = env.svc.GetAttendeeDetails(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, simpleevents.ErrInvalidIdentifier)
	})

	t.Run("DeleteAttendee", func(t *testing.T) {
		deleted, err := env.svc.DeleteAttendee(ctx, bob.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = env.svc.DeleteAttendee(ctx, bob.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestGetAttendeeDetailsWithoutEvent(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	event, err := env.svc.CreateEvent(ctx, eventRequest(10))
	require.NoError(t, err)
	ada, err := env.svc.RegisterAttendee(ctx, simpleevents.RegisterAttendeeRequest{EventID: event.ID, Name: "Ada", Email: "ada@x.com"})
	require.NoError(t, err)

	// Remove the event record alone, leaving the attendee behind
	deleted, err := env.repo.DeleteEvent(ctx, event.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	details, err := env.svc.GetAttendeeDetails(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, details.ID)
	assert.Nil(t, details.Event)
}

func TestGetBannerURL(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	plain, err := env.svc.CreateEvent(ctx, eventRequest(10))
	require.NoError(t, err)
	_, err = env.svc.GetBannerURL(ctx, plain.ID, time.Minute)
	assert.ErrorIs(t, err, simpleevents.ErrNoBanner)

	req := eventRequest(10)
	req.Banner = banner("poster.png")
	withBanner, err := env.svc.CreateEvent(ctx, req)
	require.NoError(t, err)

	link, err := env.svc.GetBannerURL(ctx, withBanner.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, link, withBanner.BannerKey)
	assert.Contains(t, link, "expires=")
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	later := eventRequest(10)
	later.Title = "Later"
	later.StartDate = later.StartDate.AddDate(0, 1, 0)
	later.EndDate = later.StartDate.Add(time.Hour)
	_, err := env.svc.CreateEvent(ctx, later)
	require.NoError(t, err)

	sooner := eventRequest(10)
	sooner.Title = "Sooner"
	_, err = env.svc.CreateEvent(ctx, sooner)
	require.NoError(t, err)

	events, err := env.svc.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Sooner", events[0].Title)
	assert.Equal(t, "Later", events[1].Title)
}
