package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventdeck/server/internal/audit"
	"github.com/eventdeck/server/internal/domain/modules"
	"github.com/eventdeck/server/internal/metrics"
	"github.com/eventdeck/server/internal/telemetry"
	"github.com/eventdeck/server/internal/validation"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 10 * time.Millisecond
)

var tracer = telemetry.GetTracer("github.com/eventdeck/server/internal/domain/events")

type Service struct {
	repo         Repository
	catalog      *modules.Catalog
	gateway      *validation.Gateway
	policy       Policy
	audit        *audit.Logger
	logger       zerolog.Logger
	strictConfig bool
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
	newID        func() string
}

type Option func(*Service)

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger.With().Str("component", "events").Logger() }
}

func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

func WithGateway(g *validation.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithStrictModuleConfig rejects module configuration that contradicts the
// module's schema instead of logging a warning.
func WithStrictModuleConfig(strict bool) Option {
	return func(s *Service) { s.strictConfig = strict }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithMaxAttempts bounds how often a mutation is retried after losing a
// version race.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the first pause between attempts after a version
// conflict. Later pauses grow exponentially with jitter. Zero retries at once.
func WithRetryBackoff(base time.Duration) Option {
	return func(s *Service) {
		if base >= 0 {
			s.retryBackoff = base
		}
	}
}

func NewService(repo Repository, catalog *modules.Catalog, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		catalog:      catalog,
		policy:       OpenPolicy{},
		audit:        audit.Nop(),
		logger:       zerolog.Nop(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gateway == nil {
		s.gateway = validation.New(validation.WithClock(s.now))
	}
	return s
}

func (s *Service) Create(ctx context.Context, actor string, in CreateEventInput) (*Event, error) {
	ctx, span := tracer.Start(ctx, "events.create")
	defer span.End()

	if err := s.gateway.Struct(&in); err != nil {
		return nil, s.fail(ctx, span, "create", actor, "", err)
	}
	if actor == "" {
		actor = AnonymousOwner
	}

	event, err := newEvent(in, s.newID(), actor, s.now())
	if err != nil {
		return nil, s.fail(ctx, span, "create", actor, "", err)
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, s.fail(ctx, span, "create", actor, event.ID, fmt.Errorf("create event: %w", err))
	}

	s.succeed(ctx, span, "create", actor, event)
	return event, nil
}

// Get returns a visible event; deleted events are reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.IsDeleted() {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *Service) Update(ctx context.Context, actor, id string, patch UpdateEventInput) (*Event, error) {
	if err := s.gateway.Struct(&patch); err != nil {
		return nil, s.fail(ctx, trace.SpanFromContext(ctx), "update", actor, id, err)
	}
	return s.mutate(ctx, "update", actor, id, ActionUpdate, func(event *Event, now time.Time) error {
		return applyPatch(event, patch, now)
	})
}

// ListPage is one page of events with its pagination summary.
type ListPage struct {
	Events     []Event  `json:"events"`
	Pagination PageInfo `json:"pagination"`
}

type PageInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func (s *Service) List(ctx context.Context, query ListQuery) (ListPage, error) {
	if err := s.gateway.Struct(&query); err != nil {
		return ListPage{}, err
	}

	result, err := s.repo.List(ctx,
		Filters{Status: Status(query.Status), OwnerID: query.UserID},
		Pagination{Page: query.Page, Limit: query.Limit},
	)
	if err != nil {
		return ListPage{}, fmt.Errorf("list events: %w", err)
	}

	events := result.Events
	if events == nil {
		events = []Event{}
	}
	return ListPage{
		Events: events,
		Pagination: PageInfo{
			Total:      result.Total,
			Page:       query.Page,
			Limit:      query.Limit,
			TotalPages: (result.Total + query.Limit - 1) / query.Limit,
		},
	}, nil
}

// ParseListQuery reads status, userId (or ownerId), limit, and page from the
// query string. Range checks happen in List.
func ParseListQuery(values url.Values) (ListQuery, error) {
	query := ListQuery{
		Status: strings.TrimSpace(values.Get("status")),
		UserID: strings.TrimSpace(values.Get("userId")),
		Limit:  DefaultPageLimit,
		Page:   1,
	}
	if query.UserID == "" {
		query.UserID = strings.TrimSpace(values.Get("ownerId"))
	}

	var errs validation.Errors
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, validation.FieldError{Field: "limit", Message: "must be a number"})
		}
		query.Limit = n
	}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, validation.FieldError{Field: "page", Message: "must be a number"})
		}
		query.Page = n
	}
	if len(errs) > 0 {
		return query, errs
	}
	return query, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// mutate runs fn against a private copy of the stored event and commits it
// with a version-checked write, retrying when another writer got there first.
// Every committed mutation advances Version by exactly one.
func (s *Service) mutate(ctx context.Context, op, actor, id string, action Action, fn func(event *Event, now time.Time) error) (*Event, error) {
	ctx, span := tracer.Start(ctx, "events."+op, trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	wait := s.newBackoff()
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		stored, err := s.Get(ctx, id)
		if err != nil {
			return nil, s.fail(ctx, span, op, actor, id, err)
		}
		if err := s.policy.Authorize(actor, action, stored); err != nil {
			return nil, s.fail(ctx, span, op, actor, id, err)
		}

		now := s.now()
		candidate := stored.Clone()
		if err := fn(candidate, now); err != nil {
			return nil, s.fail(ctx, span, op, actor, id, err)
		}
		preserveImmutable(candidate, stored)
		candidate.Version = stored.Version + 1
		candidate.UpdatedAt = now

		err = s.repo.Update(ctx, candidate, stored.Version)
		if errors.Is(err, ErrVersionConflict) {
			metrics.RecordVersionConflict()
			s.logger.Debug().Str("event_id", id).Str("operation", op).Int("attempt", attempt).Msg("version conflict, retrying")
			if attempt < s.maxAttempts {
				if err := pause(ctx, wait); err != nil {
					return nil, s.fail(ctx, span, op, actor, id, err)
				}
			}
			continue
		}
		if err != nil {
			return nil, s.fail(ctx, span, op, actor, id, fmt.Errorf("%s event: %w", op, err))
		}

		s.succeed(ctx, span, op, actor, candidate)
		return candidate, nil
	}
	return nil, s.fail(ctx, span, op, actor, id, ErrConflict)
}

func (s *Service) newBackoff() *backoff.ExponentialBackOff {
	if s.retryBackoff == 0 {
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryBackoff
	b.MaxInterval = 20 * s.retryBackoff
	return b
}

// pause sleeps for the next backoff interval or until ctx is done.
func pause(ctx context.Context, b *backoff.ExponentialBackOff) error {
	if b == nil {
		return ctx.Err()
	}
	timer := time.NewTimer(b.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) succeed(ctx context.Context, span trace.Span, op, actor string, event *Event) {
	span.SetAttributes(attribute.String("event.id", event.ID), attribute.Int("event.version", event.Version))
	metrics.RecordMutation(op, "success")
	s.audit.LogContext(ctx, audit.Entry{
		Action:       "event." + op,
		Actor:        actor,
		ResourceType: "event",
		ResourceID:   event.ID,
		Version:      event.Version,
		Status:       audit.StatusSuccess,
		Details:      map[string]string{"status": string(event.Status)},
	})
	s.logger.Info().Str("event_id", event.ID).Str("operation", op).Int("version", event.Version).Msg("event mutated")
}

func (s *Service) fail(ctx context.Context, span trace.Span, op, actor, id string, err error) error {
	outcome := Outcome(err)
	metrics.RecordMutation(op, outcome)
	if outcome == "forbidden" {
		s.audit.LogContext(ctx, audit.Entry{
			Action:       "event." + op,
			Actor:        actor,
			ResourceType: "event",
			ResourceID:   id,
			Status:       audit.StatusFailure,
			Details:      map[string]string{"reason": err.Error()},
		})
	}
	if outcome == "error" || outcome == "conflict" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Outcome classifies err for metrics and logging.
func Outcome(err error) string {
	var publishErr PublishError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrModuleNotFound), errors.Is(err, ErrAttachmentNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.As(err, &publishErr):
		return "invalid"
	}
	if _, ok := validation.AsErrors(err); ok {
		return "invalid"
	}
	return "error"
}
