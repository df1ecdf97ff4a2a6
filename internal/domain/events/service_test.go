package events_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/validation"
)

func TestService_CreateAppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	event := mustCreate(t, svc, validInput())

	require.NotEmpty(t, event.ID)
	require.Equal(t, 1, event.Version)
	require.Equal(t, events.StatusDraft, event.Status)
	require.Equal(t, events.PrivacyPublic, event.Privacy)
	require.Equal(t, events.AnonymousOwner, event.OwnerID)
	require.NotNil(t, event.Modules)
	require.Empty(t, event.Modules)
	require.Equal(t, event.CreatedAt, event.UpdatedAt)
	require.Nil(t, event.PublishedAt)
	require.NotNil(t, event.DateTime)
	require.Equal(t, "2025-12-31T18:00:00Z", event.DateTime.Format("2006-01-02T15:04:05Z07:00"))
}

func TestService_CreateSanitizesText(t *testing.T) {
	svc, _ := newTestService(t)

	in := validInput()
	in.Name = "<b>Summer</b> Meetup"
	in.Description = "<script>alert(1)</script>Bring snacks"
	in.Tags = []string{"<i>music</i>", "   "}
	event := mustCreate(t, svc, in)

	require.Equal(t, "Summer Meetup", event.Name)
	require.Equal(t, "Bring snacks", event.Description)
	require.Equal(t, []string{"music"}, event.Tags)
}

func TestService_CreatePublishedStampsPublishedAt(t *testing.T) {
	svc, _ := newTestService(t)

	in := validInput()
	in.Status = "published"
	event := mustCreate(t, svc, in)

	require.Equal(t, events.StatusPublished, event.Status)
	require.NotNil(t, event.PublishedAt)
}

func TestService_CreateRejectsInvalidInput(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), "", events.CreateEventInput{
		Name:        "ab",
		PhoneNumber: "call me",
		DateTime:    "2020-01-01T00:00:00Z",
		Capacity:    ptr(0),
	})

	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	fields := map[string]string{}
	for _, fe := range fieldErrs {
		fields[fe.Field] = fe.Message
	}
	require.Equal(t, "Event name must be at least 3 characters", fields["name"])
	require.Equal(t, "Please enter a valid phone number", fields["phoneNumber"])
	require.Equal(t, "Event date must be in the future", fields["dateTime"])
	require.Equal(t, "Capacity must be at least 1", fields["capacity"])
	require.Equal(t, 0, store.Len())
}

func TestService_NameEmptyAfterSanitizingIsRejected(t *testing.T) {
	for _, name := range []string{"<b></b>", "   ", "<i> </i>"} {
		t.Run("create "+name, func(t *testing.T) {
			svc, store := newTestService(t)
			in := validInput()
			in.Name = name

			_, err := svc.Create(context.Background(), "", in)
			fieldErrs, ok := validation.AsErrors(err)
			require.True(t, ok, "expected validation errors, got %v", err)
			require.Equal(t, "name", fieldErrs[0].Field)
			require.Equal(t, "Event name is required", fieldErrs[0].Message)
			require.Equal(t, 0, store.Len())
		})

		t.Run("update "+name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestService(t)
			created := mustCreate(t, svc, validInput())

			_, err := svc.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr(name)})
			fieldErrs, ok := validation.AsErrors(err)
			require.True(t, ok, "expected validation errors, got %v", err)
			require.Equal(t, "name", fieldErrs[0].Field)

			got, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			require.Equal(t, "Summer Meetup", got.Name)
			require.Equal(t, 1, got.Version)
		})
	}
}

func TestService_CreateMeasuresNameAfterSanitizing(t *testing.T) {
	svc, _ := newTestService(t)
	in := validInput()
	in.Name = "<b>ab</b>"

	_, err := svc.Create(context.Background(), "", in)
	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.Equal(t, "Event name must be at least 3 characters", fieldErrs[0].Message)
}

func TestService_CreateRejectsLinkTitleOfOnlyMarkup(t *testing.T) {
	svc, store := newTestService(t)
	in := validInput()
	in.Links = []events.LinkInput{{Title: "<img src=x>", URL: "https://example.com"}}

	_, err := svc.Create(context.Background(), "", in)
	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	require.Equal(t, "links[0].title", fieldErrs[0].Field)
	require.Equal(t, 0, store.Len())
}

func TestService_UpdateBumpsVersionAndKeepsSystemFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, validInput())

	updated, err := svc.Update(ctx, "", created.ID, events.UpdateEventInput{
		Name:     ptr("Winter Meetup"),
		Capacity: ptr(50),
	})
	require.NoError(t, err)

	require.Equal(t, 2, updated.Version)
	require.Equal(t, "Winter Meetup", updated.Name)
	require.Equal(t, 50, *updated.Capacity)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.OwnerID, updated.OwnerID)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	require.Equal(t, created.PhoneNumber, updated.PhoneNumber)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, updated, got)
}

func TestService_UpdateRejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, validInput())

	_, err := svc.Update(ctx, "", created.ID, events.UpdateEventInput{Status: ptr("deleted")})
	_, ok := validation.AsErrors(err)
	require.True(t, ok)

	_, err = svc.Update(ctx, "", created.ID, events.UpdateEventInput{CostPerPerson: ptr(-1.0)})
	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.Equal(t, "Cost cannot be negative", fieldErrs[0].Message)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
}

func TestService_UpdateMissingEvent(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "", "8f14e45f-ceea-4e7a-9e06-2b7c1f0a1d11", events.UpdateEventInput{Name: ptr("Renamed")})
	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestService_DeleteHidesEvent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	kept := mustCreate(t, svc, validInput())
	doomed := mustCreate(t, svc, validInput())

	require.NoError(t, svc.Delete(ctx, "", doomed.ID))

	_, err := svc.Get(ctx, doomed.ID)
	require.ErrorIs(t, err, events.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "", doomed.ID), events.ErrNotFound)
	_, err = svc.Update(ctx, "", doomed.ID, events.UpdateEventInput{Name: ptr("Back again")})
	require.ErrorIs(t, err, events.ErrNotFound)

	raw, err := store.GetByID(ctx, doomed.ID)
	require.NoError(t, err)
	require.Equal(t, events.StatusDeleted, raw.Status)
	require.NotNil(t, raw.DeletedAt)
	require.Equal(t, 2, raw.Version)

	page, err := svc.List(ctx, events.ListQuery{Limit: 20, Page: 1})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Total)
	require.Equal(t, kept.ID, page.Events[0].ID)
}

func TestService_ListPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for i := 0; i < 25; i++ {
		in := validInput()
		in.Name = fmt.Sprintf("Event %02d", i)
		mustCreate(t, svc, in)
	}

	page, err := svc.List(ctx, events.ListQuery{Limit: 20, Page: 2})
	require.NoError(t, err)

	require.Len(t, page.Events, 5)
	require.Equal(t, events.PageInfo{Total: 25, Page: 2, Limit: 20, TotalPages: 2}, page.Pagination)
	require.Equal(t, "Event 20", page.Events[0].Name)

	empty, err := svc.List(ctx, events.ListQuery{Status: "cancelled", Limit: 20, Page: 1})
	require.NoError(t, err)
	require.NotNil(t, empty.Events)
	require.Equal(t, 0, empty.Pagination.TotalPages)
}

func TestService_ListFiltersByOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreate(t, svc, validInput())
	mine, err := svc.Create(ctx, "user-7", validInput())
	require.NoError(t, err)

	page, err := svc.List(ctx, events.ListQuery{UserID: "user-7", Limit: 20, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.Equal(t, mine.ID, page.Events[0].ID)
}

func TestService_ListRejectsOutOfRangeQuery(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), events.ListQuery{Limit: 101, Page: 0})
	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.Len(t, fieldErrs, 2)
}

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		want    events.ListQuery
		wantErr bool
	}{
		{
			name:   "defaults",
			values: url.Values{},
			want:   events.ListQuery{Limit: events.DefaultPageLimit, Page: 1},
		},
		{
			name:   "all params",
			values: url.Values{"status": {"published"}, "userId": {"u1"}, "limit": {"5"}, "page": {"3"}},
			want:   events.ListQuery{Status: "published", UserID: "u1", Limit: 5, Page: 3},
		},
		{
			name:   "ownerId alias",
			values: url.Values{"ownerId": {"u2"}},
			want:   events.ListQuery{UserID: "u2", Limit: events.DefaultPageLimit, Page: 1},
		},
		{
			name:    "non numeric limit",
			values:  url.Values{"limit": {"ten"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := events.ParseListQuery(tt.values)
			if tt.wantErr {
				_, ok := validation.AsErrors(err)
				require.True(t, ok)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_RetriesLostVersionRace(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	created := mustCreate(t, svc, validInput())

	repo := &flakyRepo{Repository: store, conflicts: 2}
	retrying := events.NewService(repo, seedCatalog(t), events.WithClock(newTestClock().Now))

	updated, err := retrying.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr("Third time lucky")})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.Equal(t, 3, repo.updates)
}

func TestService_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	created := mustCreate(t, svc, validInput())

	repo := &flakyRepo{Repository: store, conflicts: 10}
	retrying := events.NewService(repo, seedCatalog(t), events.WithClock(newTestClock().Now), events.WithMaxAttempts(3))

	_, err := retrying.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr("Never lands")})
	require.ErrorIs(t, err, events.ErrConflict)
	require.Equal(t, 3, repo.updates)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
}

func TestService_BacksOffBetweenConflictingAttempts(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	created := mustCreate(t, svc, validInput())

	repo := &flakyRepo{Repository: store, conflicts: 2}
	retrying := events.NewService(repo, seedCatalog(t),
		events.WithClock(newTestClock().Now),
		events.WithRetryBackoff(20*time.Millisecond),
	)

	start := time.Now()
	updated, err := retrying.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr("Patient writer")})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestService_BackoffStopsWhenContextEnds(t *testing.T) {
	svc, store := newTestService(t)
	created := mustCreate(t, svc, validInput())

	repo := &flakyRepo{Repository: store, conflicts: 10}
	retrying := events.NewService(repo, seedCatalog(t),
		events.WithClock(newTestClock().Now),
		events.WithRetryBackoff(time.Hour),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := retrying.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr("Gave up waiting")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, repo.updates)
}

func TestService_ZeroBackoffRetriesImmediately(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	created := mustCreate(t, svc, validInput())

	repo := &flakyRepo{Repository: store, conflicts: 2}
	retrying := events.NewService(repo, seedCatalog(t), events.WithClock(newTestClock().Now), events.WithRetryBackoff(0))

	updated, err := retrying.Update(ctx, "", created.ID, events.UpdateEventInput{Name: ptr("No waiting")})
	require.NoError(t, err)
	require.Equal(t, 3, repo.updates)
	require.Equal(t, 2, updated.Version)
}

func TestService_OwnerPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, events.WithPolicy(events.OwnerPolicy{}))

	owned, err := svc.Create(ctx, "alice", validInput())
	require.NoError(t, err)
	open := mustCreate(t, svc, validInput())

	_, err = svc.Update(ctx, "bob", owned.ID, events.UpdateEventInput{Name: ptr("Hijacked")})
	require.ErrorIs(t, err, events.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, "bob", owned.ID), events.ErrForbidden)

	_, err = svc.Update(ctx, "alice", owned.ID, events.UpdateEventInput{Name: ptr("Still mine")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "bob", open.ID, events.UpdateEventInput{Name: ptr("Anyone may edit")})
	require.NoError(t, err)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "success", events.Outcome(nil))
	require.Equal(t, "not_found", events.Outcome(events.ErrNotFound))
	require.Equal(t, "not_found", events.Outcome(fmt.Errorf("wrap: %w", events.ErrAttachmentNotFound)))
	require.Equal(t, "forbidden", events.Outcome(events.ErrForbidden))
	require.Equal(t, "conflict", events.Outcome(events.ErrConflict))
	require.Equal(t, "invalid", events.Outcome(events.PublishError{}))
	require.Equal(t, "invalid", events.Outcome(validation.Errors{{Field: "name", Message: "is required"}}))
	require.Equal(t, "error", events.Outcome(fmt.Errorf("boom")))
}
