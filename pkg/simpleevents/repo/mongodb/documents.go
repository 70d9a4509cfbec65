package mongodb

import (
	"time"

	"github.com/tendant/simple-events/pkg/simpleevents"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type eventDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	StartDate     time.Time          `bson:"startDate"`
	EndDate       time.Time          `bson:"endDate"`
	Location      string             `bson:"location"`
	BannerURL     string             `bson:"bannerUrl,omitempty"`
	BannerKey     string             `bson:"bannerKey,omitempty"`
	Capacity      int                `bson:"capacity"`
	AttendeeCount int64              `bson:"attendeeCount"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

type attendeeDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	EventID      primitive.ObjectID `bson:"eventId"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	Phone        string             `bson:"phone,omitempty"`
	CheckedIn    bool               `bson:"checkedIn"`
	RegisteredAt time.Time          `bson:"registeredAt"`
}

func newEventDocument(e *simpleevents.Event) eventDocument {
	return eventDocument{
		Title:       e.Title,
		Description: e.Description,
		StartDate:   e.StartDate.UTC(),
		EndDate:     e.EndDate.UTC(),
		Location:    e.Location,
		BannerURL:   e.BannerURL,
		BannerKey:   e.BannerKey,
		Capacity:    e.Capacity,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (d eventDocument) toEvent() *simpleevents.Event {
	return &simpleevents.Event{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Location:    d.Location,
		BannerURL:   d.BannerURL,
		BannerKey:   d.BannerKey,
		Capacity:    d.Capacity,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d attendeeDocument) toAttendee() *simpleevents.Attendee {
	return &simpleevents.Attendee{
		ID:           d.ID.Hex(),
		EventID:      d.EventID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		CheckedIn:    d.CheckedIn,
		RegisteredAt: d.RegisteredAt,
	}
}

// patchUpdate builds the $set document for an event patch
func patchUpdate(patch simpleevents.EventPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.StartDate != nil {
		set["startDate"] = patch.StartDate.UTC()
	}
	if patch.EndDate != nil {
		set["endDate"] = patch.EndDate.UTC()
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Capacity != nil {
		set["capacity"] = *patch.Capacity
	}
	if patch.Banner != nil {
		set["bannerUrl"] = patch.Banner.URL
		set["bannerKey"] = patch.Banner.Key
	}
	return bson.M{"$set": set}
}
