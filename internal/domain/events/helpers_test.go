package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/domain/modules"
	"github.com/eventdeck/server/internal/storage/memory"
)

const futureDate = "2025-12-31T18:00:00Z"

// testClock starts at 2025-06-01 noon UTC and advances one second per read so
// consecutive mutations get distinct timestamps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func seedCatalog(t *testing.T) *modules.Catalog {
	t.Helper()
	catalog, err := modules.Load("")
	require.NoError(t, err)
	return catalog
}

func newTestService(t *testing.T, opts ...events.Option) (*events.Service, *memory.EventStore) {
	t.Helper()
	store := memory.NewEventStore()
	clock := newTestClock()
	opts = append([]events.Option{events.WithClock(clock.Now)}, opts...)
	return events.NewService(store, seedCatalog(t), opts...), store
}

func validInput() events.CreateEventInput {
	return events.CreateEventInput{
		Name:        "Summer Meetup",
		PhoneNumber: "+1 555-123-4567",
		DateTime:    futureDate,
		Location:    "Central Park",
	}
}

func mustCreate(t *testing.T, svc *events.Service, in events.CreateEventInput) *events.Event {
	t.Helper()
	event, err := svc.Create(context.Background(), "", in)
	require.NoError(t, err)
	return event
}

func ptr[T any](v T) *T {
	return &v
}

// flakyRepo loses the first n version races.
type flakyRepo struct {
	events.Repository
	mu        sync.Mutex
	conflicts int
	updates   int
}

func (r *flakyRepo) Update(ctx context.Context, event *events.Event, expectedVersion int) error {
	r.mu.Lock()
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return events.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.Repository.Update(ctx, event, expectedVersion)
}
