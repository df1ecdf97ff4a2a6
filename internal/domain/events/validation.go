package events

import (
	"strings"
	"time"

	"github.com/eventdeck/server/internal/sanitize"
	"github.com/eventdeck/server/internal/validation"
)

type LinkInput struct {
	Title string `json:"title" validate:"required,max=200"`
	URL   string `json:"url" validate:"required,weburl"`
}

// CreateEventInput is the accepted shape of a new event. Modules are attached
// through the composer, never at creation.
type CreateEventInput struct {
	Name          string      `json:"name" validate:"required,min=3,max=100"`
	PhoneNumber   string      `json:"phoneNumber" validate:"required,phone"`
	DateTime      string      `json:"dateTime" validate:"omitempty,isodate,future"`
	Location      string      `json:"location" validate:"omitempty,max=200"`
	CostPerPerson *float64    `json:"costPerPerson" validate:"omitnil,min=0"`
	Description   string      `json:"description" validate:"omitempty,max=1000"`
	Capacity      *int        `json:"capacity" validate:"omitnil,min=1,max=10000"`
	Photos        []string    `json:"photos" validate:"omitempty,dive,weburl"`
	Links         []LinkInput `json:"links" validate:"omitempty,dive"`
	Status        string      `json:"status" validate:"oneof=draft published cancelled completed"`
	Privacy       string      `json:"privacy" validate:"oneof=public private invite-only"`
	Tags          []string    `json:"tags" validate:"omitempty,dive,required,max=50"`
	Category      string      `json:"category" validate:"omitempty,max=50"`
	Timezone      string      `json:"timezone" validate:"omitempty,timezone"`
}

// ApplyDefaults reduces free-text fields to the plain text that will be stored,
// so required and length rules judge the stored value, then fills in status
// and privacy.
func (in *CreateEventInput) ApplyDefaults() {
	in.Name = sanitize.Text(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Location = sanitize.Text(in.Location)
	in.Description = sanitize.Text(in.Description)
	in.Category = sanitize.Text(in.Category)
	in.Tags = sanitize.TextSlice(in.Tags)
	if in.Links != nil {
		links := make([]LinkInput, len(in.Links))
		for i, l := range in.Links {
			links[i] = LinkInput{Title: sanitize.Text(l.Title), URL: strings.TrimSpace(l.URL)}
		}
		in.Links = links
	}
	if in.Status == "" {
		in.Status = string(StatusDraft)
	}
	if in.Privacy == "" {
		in.Privacy = string(PrivacyPublic)
	}
}

func (in *CreateEventInput) ValidationMessages() map[string]string {
	return eventMessages
}

// UpdateEventInput carries a partial update; nil fields are left untouched.
type UpdateEventInput struct {
	Name          *string  `json:"name" validate:"omitnil,min=3,max=100"`
	PhoneNumber   *string  `json:"phoneNumber" validate:"omitnil,phone"`
	DateTime      *string  `json:"dateTime" validate:"omitnil,isodate,future"`
	Location      *string  `json:"location" validate:"omitnil,max=200"`
	CostPerPerson *float64 `json:"costPerPerson" validate:"omitnil,min=0"`
	Description   *string  `json:"description" validate:"omitnil,max=1000"`
	Capacity      *int     `json:"capacity" validate:"omitnil,min=1,max=10000"`
	Status        *string  `json:"status" validate:"omitnil,oneof=draft published cancelled completed"`
	Privacy       *string  `json:"privacy" validate:"omitnil,oneof=public private invite-only"`
}

// ApplyDefaults normalizes the present free-text fields the same way
// CreateEventInput does. Absent fields stay nil.
func (in *UpdateEventInput) ApplyDefaults() {
	in.Name = mapPresent(in.Name, sanitize.Text)
	in.Location = mapPresent(in.Location, sanitize.Text)
	in.Description = mapPresent(in.Description, sanitize.Text)
	in.PhoneNumber = mapPresent(in.PhoneNumber, strings.TrimSpace)
}

// mapPresent returns a fresh pointer to fn(*field) so the caller's value is
// never rewritten in place.
func mapPresent(field *string, fn func(string) string) *string {
	if field == nil {
		return nil
	}
	v := fn(*field)
	return &v
}

func (in *UpdateEventInput) ValidationMessages() map[string]string {
	return eventMessages
}

type AttachModuleInput struct {
	ModuleID string         `json:"moduleId" validate:"required,max=100"`
	Config   map[string]any `json:"config"`
}

func (in *AttachModuleInput) ValidationMessages() map[string]string {
	return map[string]string{"moduleId.required": "Module id is required"}
}

var eventMessages = map[string]string{
	"name.required":        "Event name is required",
	"name.min":             "Event name must be at least 3 characters",
	"name.max":             "Event name cannot exceed 100 characters",
	"phoneNumber.required": "Phone number is required",
	"phoneNumber.phone":    "Please enter a valid phone number",
	"dateTime.future":      "Event date must be in the future",
	"costPerPerson.min":    "Cost cannot be negative",
	"capacity.min":         "Capacity must be at least 1",
	"capacity.max":         "Capacity cannot exceed 10,000",
}

// ListQuery is the validated form of the list endpoint's query string.
type ListQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=draft published cancelled completed"`
	UserID string `json:"userId" validate:"omitempty,max=100"`
	Limit  int    `json:"limit" validate:"min=1,max=100"`
	Page   int    `json:"page" validate:"min=1"`
}

const (
	DefaultPageLimit = 20
)

// newEvent builds the stored record from input already normalized and
// validated by the gateway.
func newEvent(in CreateEventInput, id, owner string, now time.Time) (*Event, error) {
	event := &Event{
		ID:            id,
		OwnerID:       owner,
		Name:          in.Name,
		PhoneNumber:   in.PhoneNumber,
		Location:      in.Location,
		CostPerPerson: in.CostPerPerson,
		Description:   in.Description,
		Capacity:      in.Capacity,
		Category:      in.Category,
		Timezone:      in.Timezone,
		Status:        Status(in.Status),
		Privacy:       Privacy(in.Privacy),
		Modules:       []ModuleAttachment{},
		Photos:        append([]string{}, in.Photos...),
		Links:         make([]Link, 0, len(in.Links)),
		Tags:          append([]string{}, in.Tags...),
		Attendees:     []string{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.DateTime != "" {
		parsed, err := validation.ParseDateTime(in.DateTime)
		if err != nil {
			return nil, validation.Errors{{Field: "dateTime", Message: "must be a valid ISO-8601 date"}}
		}
		event.DateTime = &parsed
	}
	if event.Status == StatusPublished {
		event.PublishedAt = &now
	}
	for _, l := range in.Links {
		event.Links = append(event.Links, Link{Title: l.Title, URL: l.URL})
	}
	return event, nil
}
