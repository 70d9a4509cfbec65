package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-events/pkg/simpleevents"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection    = "events"
	attendeesCollection = "attendees"
)

// Repository implements simpleevents.Repository and simpleevents.CapacityGuard using MongoDB.
//
// Events carry a denormalized attendeeCount that admission increments before
// inserting an attendee. Counts reported to callers always come from the
// attendees collection.
type Repository struct {
	events    *mongo.Collection
	attendees *mongo.Collection
	seats     seatCounter
	validator *simpleevents.Validator
	logger    *slog.Logger
}

// seatCounter updates the attendeeCount of an event document
type seatCounter interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Option configures the repository
type Option func(*Repository)

// WithLogger sets the logger used for seat accounting failures
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New creates a new MongoDB repository on the given database
func New(db *mongo.Database, opts ...Option) *Repository {
	r := &Repository{
		events:    db.Collection(eventsCollection),
		attendees: db.Collection(attendeesCollection),
		validator: simpleevents.NewValidator(),
		logger:    slog.Default(),
	}
	r.seats = r.events
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureIndexes creates the indexes the repository relies on. The unique
// (eventId, email) index is what rejects duplicate registrations.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.attendees.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("attendees_event_email_key"),
		},
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "registeredAt", Value: -1}},
			Options: options.Index().SetName("attendees_event_registered_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create attendee indexes: %w", err)
	}

	_, err = r.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "startDate", Value: 1}},
		Options: options.Index().SetName("events_start_date_idx"),
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, simpleevents.ErrInvalidIdentifier
	}
	return oid, nil
}

func wrapError(operation string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", operation, simpleevents.ErrConflict)
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Event operations

func (r *Repository) CreateEvent(ctx context.Context, event *simpleevents.Event) error {
	if err := r.validator.Event(event); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	event.CreatedAt = now
	event.UpdatedAt = now

	doc := newEventDocument(event)
	res, err := r.events.InsertOne(ctx, doc)
	if err != nil {
		return wrapError("create event", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("create event: unexpected inserted id %T", res.InsertedID)
	}
	event.ID = oid.Hex()
	return nil
}

func (r *Repository) FindEventByID(ctx context.Context, id string) (*simpleevents.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc eventDocument
	if err := r.events.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simpleevents.ErrEventNotFound
		}
		return nil, wrapError("find event", err)
	}

	return doc.toEvent(), nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]*simpleevents.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.events.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrapError("list events", err)
	}

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapError("list events", err)
	}

	events := make([]*simpleevents.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.toEvent())
	}
	return events, nil
}

func (r *Repository) UpdateEvent(ctx context.Context, id string, patch simpleevents.EventPatch) (*simpleevents.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := r.validator.Patch(patch); err != nil {
		return nil, err
	}

	// MongoDB has no table constraints, so the merged record is checked here
	current, err := r.FindEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.validator.Event(current.Apply(patch)); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc eventDocument
	err = r.events.FindOneAndUpdate(ctx, bson.M{"_id": oid}, patchUpdate(patch, now), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simpleevents.ErrEventNotFound
		}
		return nil, wrapError("update event", err)
	}

	return doc.toEvent(), nil
}

func (r *Repository) DeleteEvent(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	res, err := r.events.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, wrapError("delete event", err)
	}
	return res.DeletedCount > 0, nil
}

// Attendee operations

func (r *Repository) CreateAttendee(ctx context.Context, attendee *simpleevents.Attendee) error {
	return r.admit(ctx, attendee, false)
}

// CreateAttendeeWithinCapacity reserves a seat with a conditional increment of
// attendeeCount bounded by capacity, then inserts. The seat is released if the
// insert fails.
func (r *Repository) CreateAttendeeWithinCapacity(ctx context.Context, attendee *simpleevents.Attendee) error {
	return r.admit(ctx, attendee, true)
}

func (r *Repository) admit(ctx context.Context, attendee *simpleevents.Attendee, bounded bool) error {
	if err := r.validator.Attendee(attendee); err != nil {
		return err
	}
	eventID, err := parseID(attendee.EventID)
	if err != nil {
		return err
	}
	email := simpleevents.NormalizeEmail(attendee.Email)

	if bounded {
		taken, err := r.attendees.CountDocuments(ctx, bson.M{"eventId": eventID, "email": email}, options.Count().SetLimit(1))
		if err != nil {
			return wrapError("exists attendee", err)
		}
		if taken > 0 {
			return simpleevents.ErrConflict
		}
	}

	filter := bson.M{"_id": eventID}
	if bounded {
		filter["$expr"] = bson.M{"$lt": bson.A{"$attendeeCount", "$capacity"}}
	}
	res, err := r.events.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"attendeeCount": 1}})
	if err != nil {
		return wrapError("reserve seat", err)
	}
	if res.MatchedCount == 0 {
		if !bounded {
			return simpleevents.ErrEventNotFound
		}
		if _, err := r.FindEventByID(ctx, attendee.EventID); err != nil {
			return err
		}
		return simpleevents.ErrCapacityExceeded
	}

	doc := attendeeDocument{
		EventID:      eventID,
		Name:         attendee.Name,
		Email:        email,
		Phone:        attendee.Phone,
		RegisteredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	ins, err := r.attendees.InsertOne(ctx, doc)
	if err != nil {
		if rerr := r.releaseSeat(ctx, eventID); rerr != nil {
			return errors.Join(wrapError("create attendee", err), rerr)
		}
		return wrapError("create attendee", err)
	}

	attendee.ID = ins.InsertedID.(primitive.ObjectID).Hex()
	attendee.EventID = eventID.Hex()
	attendee.Email = email
	attendee.CheckedIn = false
	attendee.RegisteredAt = doc.RegisteredAt
	return nil
}

// releaseSeat gives back a seat taken by admit. A failure leaves the stored
// attendeeCount above the real count until it is repaired, so it is logged
// with the event id as well as returned.
func (r *Repository) releaseSeat(ctx context.Context, eventID primitive.ObjectID) error {
	_, err := r.seats.UpdateOne(ctx,
		bson.M{"_id": eventID, "attendeeCount": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"attendeeCount": -1}},
	)
	if err != nil {
		err = wrapError("release seat", err)
		r.logger.Error("failed to release event seat", "event_id", eventID.Hex(), "error", err)
		return err
	}
	return nil
}

func (r *Repository) FindAttendeeByID(ctx context.Context, id string) (*simpleevents.Attendee, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc attendeeDocument
	if err := r.attendees.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simpleevents.ErrAttendeeNotFound
		}
		return nil, wrapError("find attendee", err)
	}

	return doc.toAttendee(), nil
}

func (r *Repository) ListAttendeesByEvent(ctx context.Context, eventID string) ([]*simpleevents.Attendee, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "registeredAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.attendees.Find(ctx, bson.M{"eventId": oid}, opts)
	if err != nil {
		return nil, wrapError("list attendees", err)
	}

	var docs []attendeeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapError("list attendees", err)
	}

	attendees := make([]*simpleevents.Attendee, 0, len(docs))
	for _, doc := range docs {
		attendees = append(attendees, doc.toAttendee())
	}
	return attendees, nil
}

func (r *Repository) CountAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	n, err := r.attendees.CountDocuments(ctx, bson.M{"eventId": oid})
	if err != nil {
		return 0, wrapError("count attendees", err)
	}
	return n, nil
}

func (r *Repository) CountCheckedInByEvent(ctx context.Context, eventID string) (int64, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	n, err := r.attendees.CountDocuments(ctx, bson.M{"eventId": oid, "checkedIn": true})
	if err != nil {
		return 0, wrapError("count checked in", err)
	}
	return n, nil
}

func (r *Repository) ExistsAttendee(ctx context.Context, eventID, email string) (bool, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return false, err
	}

	n, err := r.attendees.CountDocuments(ctx,
		bson.M{"eventId": oid, "email": simpleevents.NormalizeEmail(email)},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, wrapError("exists attendee", err)
	}
	return n > 0, nil
}

func (r *Repository) UpdateCheckedIn(ctx context.Context, id string, checkedIn bool) (*simpleevents.Attendee, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc attendeeDocument
	err = r.attendees.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"checkedIn": checkedIn}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simpleevents.ErrAttendeeNotFound
		}
		return nil, wrapError("update check-in", err)
	}

	return doc.toAttendee(), nil
}

func (r *Repository) DeleteAttendee(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	var doc attendeeDocument
	err = r.attendees.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, wrapError("delete attendee", err)
	}

	// The attendee is gone either way; a failed release has been logged
	_ = r.releaseSeat(ctx, doc.EventID)
	return true, nil
}

func (r *Repository) DeleteAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	res, err := r.attendees.DeleteMany(ctx, bson.M{"eventId": oid})
	if err != nil {
		return 0, wrapError("delete attendees", err)
	}

	if _, err := r.events.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"attendeeCount": 0}}); err != nil {
		return res.DeletedCount, wrapError("reset attendee count", err)
	}
	return res.DeletedCount, nil
}
