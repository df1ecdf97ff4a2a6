package events

import (
	"context"
	"strings"
	"time"

	"github.com/eventdeck/server/internal/validation"
)

// checkTransition guards status changes made through a general update. Any
// non-deleted status may move to any other non-deleted status; deleted is
// reachable only through Delete and is terminal.
func checkTransition(from, to Status) error {
	if from == StatusDeleted {
		return ErrNotFound
	}
	if to == StatusDeleted || !to.Valid() {
		return validation.Errors{{Field: "status", Message: "must be one of [draft, published, cancelled, completed]"}}
	}
	return nil
}

// publishable reports the fields that keep event from being published.
func publishable(event *Event) validation.Errors {
	var missing validation.Errors
	if strings.TrimSpace(event.Name) == "" {
		missing = append(missing, validation.FieldError{Field: "name", Message: "is required to publish"})
	}
	if event.DateTime == nil {
		missing = append(missing, validation.FieldError{Field: "dateTime", Message: "is required to publish"})
	}
	return missing
}

// Publish moves an event to published once it has a name and a date/time.
func (s *Service) Publish(ctx context.Context, actor, id string) (*Event, error) {
	return s.mutate(ctx, "publish", actor, id, ActionPublish, func(event *Event, now time.Time) error {
		if missing := publishable(event); len(missing) > 0 {
			return PublishError{Missing: missing}
		}
		event.Status = StatusPublished
		event.PublishedAt = &now
		return nil
	})
}

// Delete soft-deletes an event. The record is kept but every later lookup
// reports it as not found.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	_, err := s.mutate(ctx, "delete", actor, id, ActionDelete, func(event *Event, now time.Time) error {
		event.Status = StatusDeleted
		event.DeletedAt = &now
		return nil
	})
	return err
}
