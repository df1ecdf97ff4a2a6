package events

import (
	"context"
	"time"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled, StatusCompleted, StatusDeleted:
		return true
	}
	return false
}

type Privacy string

const (
	PrivacyPublic     Privacy = "public"
	PrivacyPrivate    Privacy = "private"
	PrivacyInviteOnly Privacy = "invite-only"
)

// AnonymousOwner owns events created without an authenticated caller.
const AnonymousOwner = "anonymous"

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ModuleAttachment is a catalog module placed on an event. Order always equals
// the attachment's index in Event.Modules.
type ModuleAttachment struct {
	ID        string         `json:"id"`
	Config    map[string]any `json:"config"`
	Order     int            `json:"order"`
	AddedAt   time.Time      `json:"addedAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

type Event struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"ownerId"`
	Name          string             `json:"name"`
	PhoneNumber   string             `json:"phoneNumber"`
	DateTime      *time.Time         `json:"dateTime,omitempty"`
	Location      string             `json:"location,omitempty"`
	CostPerPerson *float64           `json:"costPerPerson,omitempty"`
	Description   string             `json:"description,omitempty"`
	Capacity      *int               `json:"capacity,omitempty"`
	Category      string             `json:"category,omitempty"`
	Timezone      string             `json:"timezone,omitempty"`
	Status        Status             `json:"status"`
	Privacy       Privacy            `json:"privacy"`
	Modules       []ModuleAttachment `json:"modules"`
	Photos        []string           `json:"photos"`
	Links         []Link             `json:"links"`
	Tags          []string           `json:"tags"`
	Views         int                `json:"views"`
	Attendees     []string           `json:"attendees"`
	Version       int                `json:"version"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	PublishedAt   *time.Time         `json:"publishedAt,omitempty"`
	DeletedAt     *time.Time         `json:"deletedAt,omitempty"`
}

func (e *Event) IsDeleted() bool {
	return e.Status == StatusDeleted
}

// ModuleIndex returns the position of the attachment for moduleID, or -1.
func (e *Event) ModuleIndex(moduleID string) int {
	for i := range e.Modules {
		if e.Modules[i].ID == moduleID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no slices, maps, or pointers with e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.DateTime = cloneTime(e.DateTime)
	out.PublishedAt = cloneTime(e.PublishedAt)
	out.DeletedAt = cloneTime(e.DeletedAt)
	if e.CostPerPerson != nil {
		v := *e.CostPerPerson
		out.CostPerPerson = &v
	}
	if e.Capacity != nil {
		v := *e.Capacity
		out.Capacity = &v
	}
	out.Modules = make([]ModuleAttachment, len(e.Modules))
	for i, m := range e.Modules {
		m.Config = cloneConfig(m.Config)
		m.UpdatedAt = cloneTime(m.UpdatedAt)
		out.Modules[i] = m
	}
	out.Photos = append(make([]string, 0, len(e.Photos)), e.Photos...)
	out.Links = append(make([]Link, 0, len(e.Links)), e.Links...)
	out.Tags = append(make([]string, 0, len(e.Tags)), e.Tags...)
	out.Attendees = append(make([]string, 0, len(e.Attendees)), e.Attendees...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Filters narrows List. Deleted events are always excluded.
type Filters struct {
	Status  Status
	OwnerID string
}

// Pagination is 1-based offset pagination.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type ListResult struct {
	Events []Event
	Total  int
}

// Repository persists events. GetByID returns deleted records too; callers
// decide visibility. Update is a compare-and-swap on Version: it stores event
// only when the stored version equals expectedVersion and returns
// ErrVersionConflict otherwise. List orders by CreatedAt then ID and never
// returns deleted events.
type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, event *Event, expectedVersion int) error
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	Ping(ctx context.Context) error
}
