package handlers

import (
	"net/http"
	"strings"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/api/middleware"
	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/validation"
)

func (h *EventsHandler) AttachModule(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r, "eventId")
	if !ok {
		return
	}

	var input events.AttachModuleInput
	if err := validation.ReadJSON(r.Body, &input); err != nil {
		envelope.Error(w, r, err)
		return
	}

	event, err := h.Service.AttachModule(r.Context(), middleware.Actor(r.Context()), eventID, input)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Module added to event successfully", event)
}

func (h *EventsHandler) DetachModule(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r, "eventId")
	if !ok {
		return
	}
	moduleID, ok := h.moduleID(w, r)
	if !ok {
		return
	}

	event, err := h.Service.DetachModule(r.Context(), middleware.Actor(r.Context()), eventID, moduleID)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Module removed from event successfully", event)
}

// UpdateModuleConfig takes the bare config object as the request body.
func (h *EventsHandler) UpdateModuleConfig(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r, "eventId")
	if !ok {
		return
	}
	moduleID, ok := h.moduleID(w, r)
	if !ok {
		return
	}

	var patch map[string]any
	if err := validation.ReadJSON(r.Body, &patch); err != nil {
		envelope.Error(w, r, err)
		return
	}

	event, err := h.Service.UpdateModuleConfig(r.Context(), middleware.Actor(r.Context()), eventID, moduleID, patch)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, "Module config updated successfully", event)
}

func (h *EventsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r, "eventId")
	if !ok {
		return
	}

	preview, err := h.Service.Preview(r.Context(), eventID)
	if err != nil {
		envelope.Error(w, r, err)
		return
	}
	envelope.OK(w, envelope.MessageSuccess, preview)
}

func (h *EventsHandler) moduleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("moduleId"))
	if err := h.Service.ValidateModuleID("moduleId", id); err != nil {
		envelope.Error(w, r, err)
		return "", false
	}
	return id, true
}
