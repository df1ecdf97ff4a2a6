// Package memory keeps events in process memory. It is the default store for
// development and tests and is safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eventdeck/server/internal/domain/events"
)

type EventStore struct {
	mu    sync.RWMutex
	byID  map[string]*events.Event
	order []string
}

var _ events.Repository = (*EventStore)(nil)

func NewEventStore() *EventStore {
	return &EventStore{byID: make(map[string]*events.Event)}
}

func (s *EventStore) Create(ctx context.Context, event *events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event == nil || event.ID == "" {
		return fmt.Errorf("memory: event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[event.ID]; exists {
		return fmt.Errorf("memory: event %s already exists", event.ID)
	}
	s.byID[event.ID] = event.Clone()
	s.order = append(s.order, event.ID)
	return nil
}

func (s *EventStore) GetByID(ctx context.Context, id string) (*events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.byID[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return event.Clone(), nil
}

func (s *EventStore) Update(ctx context.Context, event *events.Event, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[event.ID]
	if !ok {
		return events.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return events.ErrVersionConflict
	}
	s.byID[event.ID] = event.Clone()
	return nil
}

func (s *EventStore) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return events.ListResult{}, err
	}

	s.mu.RLock()
	matched := make([]*events.Event, 0, len(s.order))
	for _, id := range s.order {
		event := s.byID[id]
		if event.IsDeleted() {
			continue
		}
		if filters.Status != "" && event.Status != filters.Status {
			continue
		}
		if filters.OwnerID != "" && event.OwnerID != filters.OwnerID {
			continue
		}
		matched = append(matched, event.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	result := events.ListResult{Events: []events.Event{}, Total: len(matched)}
	start := pagination.Offset()
	if start >= len(matched) {
		return result, nil
	}
	end := len(matched)
	if pagination.Limit > 0 && start+pagination.Limit < end {
		end = start + pagination.Limit
	}
	for _, event := range matched[start:end] {
		result.Events = append(result.Events, *event)
	}
	return result, nil
}

func (s *EventStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len counts stored records, deleted ones included.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
