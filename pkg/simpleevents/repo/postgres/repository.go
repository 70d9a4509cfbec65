package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

// DBTX is an interface that allows us to use either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements simpleevents.Repository and simpleevents.CapacityGuard using PostgreSQL
type Repository struct {
	db        DBTX
	validator *simpleevents.Validator
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db, validator: simpleevents.NewValidator()}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return New(pool)
}

const eventColumns = `id, title, description, start_date, end_date, location,
	COALESCE(banner_url, ''), COALESCE(banner_key, ''), capacity, created_at, updated_at`

const attendeeColumns = `id, event_id, name, email, phone, checked_in, registered_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w (%s)", operation, simpleevents.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return simpleevents.ErrEventNotFound
		case "23514", "23502", "22001": // check_violation, not_null_violation, string_data_right_truncation
			field := pgErr.ColumnName
			if field == "" {
				field = pgErr.ConstraintName
			}
			return &simpleevents.ValidationError{Fields: []simpleevents.FieldError{{Field: field, Rule: "constraint"}}}
		case "22P02": // invalid_text_representation
			return simpleevents.ErrInvalidIdentifier
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, simpleevents.ErrInvalidIdentifier
	}
	return parsed, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (*simpleevents.Event, error) {
	var (
		event simpleevents.Event
		id    uuid.UUID
	)
	err := row.Scan(&id, &event.Title, &event.Description, &event.StartDate, &event.EndDate,
		&event.Location, &event.BannerURL, &event.BannerKey, &event.Capacity,
		&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}
	event.ID = id.String()
	return &event, nil
}

func scanAttendee(row scanner) (*simpleevents.Attendee, error) {
	var (
		attendee simpleevents.Attendee
		id       uuid.UUID
		eventID  uuid.UUID
	)
	err := row.Scan(&id, &eventID, &attendee.Name, &attendee.Email, &attendee.Phone,
		&attendee.CheckedIn, &attendee.RegisteredAt)
	if err != nil {
		return nil, err
	}
	attendee.ID = id.String()
	attendee.EventID = eventID.String()
	return &attendee, nil
}

// Event operations

func (r *Repository) CreateEvent(ctx context.Context, event *simpleevents.Event) error {
	if err := r.validator.Event(event); err != nil {
		return err
	}

	query := `
		INSERT INTO events (
			title, description, start_date, end_date, location,
			banner_url, banner_key, capacity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		event.Title, event.Description, event.StartDate, event.EndDate, event.Location,
		nullIfEmpty(event.BannerURL), nullIfEmpty(event.BannerKey), event.Capacity,
	).Scan(&id, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create event", err)
	}

	event.ID = id.String()
	return nil
}

func (r *Repository) FindEventByID(ctx context.Context, id string) (*simpleevents.Event, error) {
	eventID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleevents.ErrEventNotFound
		}
		return nil, r.handlePostgresError("find event", err)
	}

	return event, nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]*simpleevents.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY start_date ASC, id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list events", err)
	}
	defer rows.Close()

	events := make([]*simpleevents.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.handlePostgresError("list events", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list events", err)
	}

	return events, nil
}

func (r *Repository) UpdateEvent(ctx context.Context, id string, patch simpleevents.EventPatch) (*simpleevents.Event, error) {
	eventID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := r.validator.Patch(patch); err != nil {
		return nil, err
	}

	var bannerURL, bannerKey *string
	if patch.Banner != nil {
		bannerURL = nullIfEmpty(patch.Banner.URL)
		bannerKey = nullIfEmpty(patch.Banner.Key)
	}

	// Merged-record rules (date range, banner pair) are enforced by the table constraints
	query := `
		UPDATE events SET
			title       = COALESCE($2::text, title),
			description = COALESCE($3::text, description),
			start_date  = COALESCE($4::timestamptz, start_date),
			end_date    = COALESCE($5::timestamptz, end_date),
			location    = COALESCE($6::text, location),
			capacity    = COALESCE($7::integer, capacity),
			banner_url  = CASE WHEN $8::boolean THEN $9::text ELSE banner_url END,
			banner_key  = CASE WHEN $8::boolean THEN $10::text ELSE banner_key END,
			updated_at  = now()
		WHERE id = $1
		RETURNING ` + eventColumns

	event, err := scanEvent(r.db.QueryRow(ctx, query, eventID,
		patch.Title, patch.Description, patch.StartDate, patch.EndDate, patch.Location, patch.Capacity,
		patch.Banner != nil, bannerURL, bannerKey,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleevents.ErrEventNotFound
		}
		return nil, r.handlePostgresError("update event", err)
	}

	return event, nil
}

func (r *Repository) DeleteEvent(ctx context.Context, id string) (bool, error) {
	eventID, err := parseID(id)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return false, r.handlePostgresError("delete event", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Attendee operations

func (r *Repository) CreateAttendee(ctx context.Context, attendee *simpleevents.Attendee) error {
	if err := r.validator.Attendee(attendee); err != nil {
		return err
	}
	eventID, err := parseID(attendee.EventID)
	if err != nil {
		return err
	}

	return r.insertAttendee(ctx, r.db, eventID, attendee)
}

// CreateAttendeeWithinCapacity locks the event row, counts its attendees and
// inserts in one transaction, so concurrent admissions serialize per event.
func (r *Repository) CreateAttendeeWithinCapacity(ctx context.Context, attendee *simpleevents.Attendee) error {
	if err := r.validator.Attendee(attendee); err != nil {
		return err
	}
	eventID, err := parseID(attendee.EventID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("begin admission", err)
	}
	defer tx.Rollback(ctx)

	var capacity int
	err = tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return simpleevents.ErrEventNotFound
		}
		return r.handlePostgresError("lock event", err)
	}

	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM attendees WHERE event_id = $1`, eventID).Scan(&count); err != nil {
		return r.handlePostgresError("count attendees", err)
	}
	if count >= int64(capacity) {
		return simpleevents.ErrCapacityExceeded
	}

	if err := r.insertAttendee(ctx, tx, eventID, attendee); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("commit admission", err)
	}
	return nil
}

func (r *Repository) insertAttendee(ctx context.Context, db DBTX, eventID uuid.UUID, attendee *simpleevents.Attendee) error {
	query := `
		INSERT INTO attendees (event_id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, checked_in, registered_at`

	var id uuid.UUID
	err := db.QueryRow(ctx, query,
		eventID, attendee.Name, simpleevents.NormalizeEmail(attendee.Email), attendee.Phone,
	).Scan(&id, &attendee.CheckedIn, &attendee.RegisteredAt)
	if err != nil {
		return r.handlePostgresError("create attendee", err)
	}

	attendee.ID = id.String()
	attendee.EventID = eventID.String()
	attendee.Email = simpleevents.NormalizeEmail(attendee.Email)
	return nil
}

func (r *Repository) FindAttendeeByID(ctx context.Context, id string) (*simpleevents.Attendee, error) {
	attendeeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE id = $1`

	attendee, err := scanAttendee(r.db.QueryRow(ctx, query, attendeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleevents.ErrAttendeeNotFound
		}
		return nil, r.handlePostgresError("find attendee", err)
	}

	return attendee, nil
}

func (r *Repository) ListAttendeesByEvent(ctx context.Context, eventID string) ([]*simpleevents.Attendee, error) {
	id, err := parseID(eventID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + attendeeColumns + `
		FROM attendees WHERE event_id = $1
		ORDER BY registered_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, r.handlePostgresError("list attendees", err)
	}
	defer rows.Close()

	attendees := make([]*simpleevents.Attendee, 0)
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, r.handlePostgresError("list attendees", err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list attendees", err)
	}

	return attendees, nil
}

func (r *Repository) CountAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	return r.count(ctx, "count attendees", `SELECT COUNT(*) FROM attendees WHERE event_id = $1`, eventID)
}

func (r *Repository) CountCheckedInByEvent(ctx context.Context, eventID string) (int64, error) {
	return r.count(ctx, "count checked in", `SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND checked_in`, eventID)
}

func (r *Repository) count(ctx context.Context, operation, query, eventID string) (int64, error) {
	id, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, r.handlePostgresError(operation, err)
	}
	return n, nil
}

func (r *Repository) ExistsAttendee(ctx context.Context, eventID, email string) (bool, error) {
	id, err := parseID(eventID)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendees WHERE event_id = $1 AND email = $2)`,
		id, simpleevents.NormalizeEmail(email),
	).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("exists attendee", err)
	}
	return exists, nil
}

func (r *Repository) UpdateCheckedIn(ctx context.Context, id string, checkedIn bool) (*simpleevents.Attendee, error) {
	attendeeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `UPDATE attendees SET checked_in = $2 WHERE id = $1 RETURNING ` + attendeeColumns

	attendee, err := scanAttendee(r.db.QueryRow(ctx, query, attendeeID, checkedIn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleevents.ErrAttendeeNotFound
		}
		return nil, r.handlePostgresError("update check-in", err)
	}

	return attendee, nil
}

func (r *Repository) DeleteAttendee(ctx context.Context, id string) (bool, error) {
	attendeeID, err := parseID(id)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, attendeeID)
	if err != nil {
		return false, r.handlePostgresError("delete attendee", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *Repository) DeleteAttendeesByEvent(ctx context.Context, eventID string) (int64, error) {
	id, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM attendees WHERE event_id = $1`, id)
	if err != nil {
		return 0, r.handlePostgresError("delete attendees", err)
	}

	return tag.RowsAffected(), nil
}
