package handlers

import (
	"net/http"
	"strings"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/api/middleware"
	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/validation"
)

type EventsHandler struct {
	Service *events.Service
}

func NewEventsHandler(service *events.Service) *EventsHandler {
	return &EventsHandler{Service: service}
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.CreateEventInput
	if err := validation.ReadJSON(r.Body, &input); err != nil {
		envelope.Error(w, r, err)
		return
	}

	event, err := h.Service.Create(r.Context(), middleware.Actor(r.Context()), input)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.Created(w, "Event created successfully", event)
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.Service.Get(r.Context(), id)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, envelope.MessageSuccess, event)
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "id")
	if !ok {
		return
	}

	var patch events.UpdateEventInput
	if err := validation.ReadJSON(r.Body, &patch); err != nil {
		envelope.Error(w, r, err)
		return
	}

	event, err := h.Service.Update(r.Context(), middleware.Actor(r.Context()), id, patch)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Event updated successfully", event)
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), middleware.Actor(r.Context()), id); err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Event deleted successfully", nil)
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := events.ParseListQuery(r.URL.Query())
	if err != nil {
		envelope.Error(w, r, err)
		return
	}

	page, err := h.Service.List(r.Context(), query)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, envelope.MessageSuccess, page)
}

func (h *EventsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.Service.Publish(r.Context(), middleware.Actor(r.Context()), id)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Event published successfully", event)
}

// eventID reads and checks the UUID path parameter name, writing a 400 when
// it is malformed.
func (h *EventsHandler) eventID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if err := h.Service.ValidateEventID(name, id); err != nil {
		envelope.Error(w, r, err)
		return "", false
	}
	return id, true
}
