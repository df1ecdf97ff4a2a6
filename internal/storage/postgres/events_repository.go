package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/metrics"
)

// invalidTextRepresentation is raised when an id is not a valid UUID.
const invalidTextRepresentation = "22P02"

type EventRepository struct {
	pool *pgxpool.Pool
}

var _ events.Repository = (*EventRepository)(nil)

func NewEventRepository(pool *pgxpool.Pool) (*EventRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &EventRepository{pool: pool}, nil
}

const eventColumns = `id, owner_id, name, phone_number, date_time, location, cost_per_person,
       description, capacity, category, timezone, status, privacy, modules, photos,
       links, tags, views, attendees, version, created_at, updated_at, published_at, deleted_at`

// eventRow carries the JSONB columns as raw bytes until decode.
type eventRow struct {
	event   events.Event
	modules []byte
	photos  []byte
	links   []byte
}

func (row *eventRow) targets() []any {
	e := &row.event
	return []any{
		&e.ID, &e.OwnerID, &e.Name, &e.PhoneNumber, &e.DateTime, &e.Location, &e.CostPerPerson,
		&e.Description, &e.Capacity, &e.Category, &e.Timezone, &e.Status, &e.Privacy, &row.modules, &row.photos,
		&row.links, &e.Tags, &e.Views, &e.Attendees, &e.Version, &e.CreatedAt, &e.UpdatedAt, &e.PublishedAt, &e.DeletedAt,
	}
}

func (row *eventRow) decode() (*events.Event, error) {
	e := row.event
	if err := json.Unmarshal(row.modules, &e.Modules); err != nil {
		return nil, fmt.Errorf("decode modules of event %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(row.photos, &e.Photos); err != nil {
		return nil, fmt.Errorf("decode photos of event %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(row.links, &e.Links); err != nil {
		return nil, fmt.Errorf("decode links of event %s: %w", e.ID, err)
	}
	normalize(&e)
	return &e, nil
}

// normalize replaces NULL collections with empty ones and pins timestamps to UTC.
func normalize(e *events.Event) {
	if e.Modules == nil {
		e.Modules = []events.ModuleAttachment{}
	}
	if e.Photos == nil {
		e.Photos = []string{}
	}
	if e.Links == nil {
		e.Links = []events.Link{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.DateTime = utc(e.DateTime)
	e.PublishedAt = utc(e.PublishedAt)
	e.DeletedAt = utc(e.DeletedAt)
	for i := range e.Modules {
		e.Modules[i].AddedAt = e.Modules[i].AddedAt.UTC()
		e.Modules[i].UpdatedAt = utc(e.Modules[i].UpdatedAt)
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type encodedCollections struct {
	modules []byte
	photos  []byte
	links   []byte
}

func encodeCollections(event *events.Event) (encodedCollections, error) {
	var (
		out encodedCollections
		err error
	)
	if out.modules, err = marshalList(event.Modules); err != nil {
		return out, fmt.Errorf("encode modules: %w", err)
	}
	if out.photos, err = marshalList(event.Photos); err != nil {
		return out, fmt.Errorf("encode photos: %w", err)
	}
	if out.links, err = marshalList(event.Links); err != nil {
		return out, fmt.Errorf("encode links: %w", err)
	}
	return out, nil
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func textArray(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func (r *EventRepository) Create(ctx context.Context, event *events.Event) error {
	start := time.Now()

	cols, err := encodeCollections(event)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO events (`+eventColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		event.ID, event.OwnerID, event.Name, event.PhoneNumber, event.DateTime, event.Location, event.CostPerPerson,
		event.Description, event.Capacity, event.Category, event.Timezone, string(event.Status), string(event.Privacy),
		cols.modules, cols.photos, cols.links, textArray(event.Tags), event.Views, textArray(event.Attendees),
		event.Version, event.CreatedAt, event.UpdatedAt, event.PublishedAt, event.DeletedAt,
	)
	metrics.RecordQuery("create_event", start, err)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	start := time.Now()

	var row eventRow
	err := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id).Scan(row.targets()...)
	if isNotFound(err) {
		metrics.RecordQuery("get_event", start, nil)
		return nil, events.ErrNotFound
	}
	metrics.RecordQuery("get_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return row.decode()
}

// Update writes event only if the stored row still carries expectedVersion.
func (r *EventRepository) Update(ctx context.Context, event *events.Event, expectedVersion int) error {
	start := time.Now()

	cols, err := encodeCollections(event)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET name = $3, phone_number = $4, date_time = $5, location = $6, cost_per_person = $7,
       description = $8, capacity = $9, category = $10, timezone = $11, status = $12,
       privacy = $13, modules = $14, photos = $15, links = $16, tags = $17, views = $18,
       attendees = $19, version = $20, updated_at = $21, published_at = $22, deleted_at = $23
 WHERE id = $1 AND version = $2`,
		event.ID, expectedVersion,
		event.Name, event.PhoneNumber, event.DateTime, event.Location, event.CostPerPerson,
		event.Description, event.Capacity, event.Category, event.Timezone, string(event.Status),
		string(event.Privacy), cols.modules, cols.photos, cols.links, textArray(event.Tags), event.Views,
		textArray(event.Attendees), event.Version, event.UpdatedAt, event.PublishedAt, event.DeletedAt,
	)
	metrics.RecordQuery("update_event", start, err)
	if isNotFound(err) {
		return events.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, event.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check event existence: %w", err)
	}
	if !exists {
		return events.ErrNotFound
	}
	return events.ErrVersionConflict
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	start := time.Now()

	const where = `
 WHERE status <> 'deleted'
   AND ($1 = '' OR status = $1)
   AND ($2 = '' OR owner_id = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM events`+where, string(filters.Status), filters.OwnerID).Scan(&total); err != nil {
		metrics.RecordQuery("list_events", start, err)
		return events.ListResult{}, fmt.Errorf("count events: %w", err)
	}

	limit := pagination.Limit
	if limit <= 0 {
		limit = events.DefaultPageLimit
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events`+where+`
 ORDER BY created_at ASC, id ASC
 LIMIT $3 OFFSET $4`,
		string(filters.Status), filters.OwnerID, limit, pagination.Offset(),
	)
	if err != nil {
		metrics.RecordQuery("list_events", start, err)
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(row.targets()...); err != nil {
			metrics.RecordQuery("list_events", start, err)
			return events.ListResult{}, fmt.Errorf("scan event: %w", err)
		}
		event, err := row.decode()
		if err != nil {
			return events.ListResult{}, err
		}
		items = append(items, *event)
	}
	err = rows.Err()
	metrics.RecordQuery("list_events", start, err)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("iterate events: %w", err)
	}
	return events.ListResult{Events: items, Total: total}, nil
}

func (r *EventRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
