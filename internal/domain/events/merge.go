package events

import (
	"time"

	"github.com/eventdeck/server/internal/validation"
)

// applyPatch overlays every non-nil field of patch onto event (new over old).
// The patch is expected to have been normalized by ApplyDefaults.
// Only fields present in UpdateEventInput can change; system fields are
// restored afterwards by preserveImmutable.
func applyPatch(event *Event, patch UpdateEventInput, now time.Time) error {
	if patch.Name != nil {
		event.Name = *patch.Name
	}
	if patch.PhoneNumber != nil {
		event.PhoneNumber = *patch.PhoneNumber
	}
	if patch.DateTime != nil {
		parsed, err := validation.ParseDateTime(*patch.DateTime)
		if err != nil {
			return validation.Errors{{Field: "dateTime", Message: "must be a valid ISO-8601 date"}}
		}
		event.DateTime = &parsed
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.CostPerPerson != nil {
		v := *patch.CostPerPerson
		event.CostPerPerson = &v
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Capacity != nil {
		v := *patch.Capacity
		event.Capacity = &v
	}
	if patch.Status != nil {
		next := Status(*patch.Status)
		if err := checkTransition(event.Status, next); err != nil {
			return err
		}
		if next == StatusPublished && event.PublishedAt == nil {
			event.PublishedAt = &now
		}
		event.Status = next
	}
	if patch.Privacy != nil {
		event.Privacy = Privacy(*patch.Privacy)
	}
	return nil
}

// preserveImmutable copies the fields no client input may change from the
// stored record onto the candidate.
func preserveImmutable(candidate, stored *Event) {
	candidate.ID = stored.ID
	candidate.OwnerID = stored.OwnerID
	candidate.CreatedAt = stored.CreatedAt
	candidate.Version = stored.Version
	candidate.Views = stored.Views
}

// mergeConfig shallow-merges patch over base into a new map: keys in patch
// win, keys only in base survive.
func mergeConfig(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneConfig(config map[string]any) map[string]any {
	if config == nil {
		return map[string]any{}
	}
	return mergeConfig(config, nil)
}

// cloneValue deep-copies JSON-shaped values.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// reindex makes every attachment's Order equal its position.
func reindex(modules []ModuleAttachment) {
	for i := range modules {
		modules[i].Order = i
	}
}
