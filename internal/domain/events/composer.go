package events

import (
	"context"
	"slices"
	"time"

	"github.com/eventdeck/server/internal/domain/modules"
	"github.com/eventdeck/server/internal/metrics"
)

// AttachModule places an active catalog module on an event. A new attachment
// starts from the schema defaults with the given config merged over them.
// Attaching a module that is already present merges the new config over the
// old one instead of adding a second attachment.
func (s *Service) AttachModule(ctx context.Context, actor, eventID string, in AttachModuleInput) (*Event, error) {
	if err := s.gateway.Struct(&in); err != nil {
		return nil, err
	}

	var action string
	event, err := s.mutate(ctx, "attach_module", actor, eventID, ActionAttachModule, func(event *Event, now time.Time) error {
		def, ok := s.catalog.FindActiveByID(in.ModuleID)
		if !ok {
			return ErrModuleNotFound
		}
		if err := s.checkConfig(def, in.Config); err != nil {
			return err
		}

		if idx := event.ModuleIndex(in.ModuleID); idx >= 0 {
			event.Modules[idx].Config = mergeConfig(event.Modules[idx].Config, in.Config)
			action = "merge"
			return nil
		}

		event.Modules = append(event.Modules, ModuleAttachment{
			ID:      in.ModuleID,
			Config:  mergeConfig(def.ConfigSchema.Defaults(), in.Config),
			Order:   len(event.Modules),
			AddedAt: now,
		})
		action = "attach"
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordModuleAttachment(in.ModuleID, action)
	return event, nil
}

// DetachModule removes an attachment and renumbers the remaining ones so
// Order stays 0..n-1 in their existing relative order.
func (s *Service) DetachModule(ctx context.Context, actor, eventID, moduleID string) (*Event, error) {
	event, err := s.mutate(ctx, "detach_module", actor, eventID, ActionDetachModule, func(event *Event, _ time.Time) error {
		idx := event.ModuleIndex(moduleID)
		if idx < 0 {
			return ErrAttachmentNotFound
		}
		event.Modules = slices.Delete(event.Modules, idx, idx+1)
		reindex(event.Modules)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordModuleAttachment(moduleID, "detach")
	return event, nil
}

// UpdateModuleConfig shallow-merges patch over an attachment's config.
func (s *Service) UpdateModuleConfig(ctx context.Context, actor, eventID, moduleID string, patch map[string]any) (*Event, error) {
	event, err := s.mutate(ctx, "update_module_config", actor, eventID, ActionConfigModule, func(event *Event, now time.Time) error {
		idx := event.ModuleIndex(moduleID)
		if idx < 0 {
			return ErrAttachmentNotFound
		}
		if def, ok := s.catalog.FindByID(moduleID); ok {
			if err := s.checkConfig(def, patch); err != nil {
				return err
			}
		}
		attachment := &event.Modules[idx]
		attachment.Config = mergeConfig(attachment.Config, patch)
		attachment.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordModuleAttachment(moduleID, "configure")
	return event, nil
}

// checkConfig validates config against the module's schema. Violations are
// returned in strict mode and logged otherwise.
func (s *Service) checkConfig(def modules.Definition, config map[string]any) error {
	violations := def.ConfigSchema.Check(config)
	if len(violations) == 0 {
		return nil
	}
	if s.strictConfig {
		return ConfigError{ModuleID: def.ID, Errors: violations}
	}
	s.logger.Warn().
		Str("module_id", def.ID).
		Str("violations", violations.Error()).
		Msg("module config does not match schema")
	return nil
}

// PreviewModule is an attachment joined with its catalog definition.
type PreviewModule struct {
	ModuleAttachment
	Code string `json:"code"`
	Name string `json:"name"`
}

type Preview struct {
	Event   *Event          `json:"event"`
	Modules []PreviewModule `json:"modules"`
}

// Preview joins every attachment, in order, with its catalog definition. A
// dangling module id yields empty code and the raw id as name.
func (s *Service) Preview(ctx context.Context, eventID string) (Preview, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return Preview{}, err
	}

	out := Preview{Event: event, Modules: make([]PreviewModule, 0, len(event.Modules))}
	for _, attachment := range event.Modules {
		pm := PreviewModule{ModuleAttachment: attachment, Name: attachment.ID}
		if def, ok := s.catalog.FindByID(attachment.ID); ok {
			pm.Code = def.Code
			if def.Name != "" {
				pm.Name = def.Name
			}
		}
		out.Modules = append(out.Modules, pm)
	}
	return out, nil
}

// Catalog exposes the module catalog the service resolves attachments against.
func (s *Service) Catalog() *modules.Catalog {
	return s.catalog
}

// ValidateEventID reports a malformed event id the way the gateway reports
// payload errors.
func (s *Service) ValidateEventID(field, id string) error {
	return s.gateway.Var(field, id, "required,uuid")
}

// ValidateModuleID reports a malformed module id.
func (s *Service) ValidateModuleID(field, id string) error {
	return s.gateway.Var(field, id, "required,max=100")
}
