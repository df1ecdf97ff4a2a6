package events

import (
	"errors"

	"github.com/eventdeck/server/internal/validation"
)

var (
	ErrNotFound           = errors.New("event not found")
	ErrModuleNotFound     = errors.New("module not found or inactive")
	ErrAttachmentNotFound = errors.New("module not found in event")
	ErrForbidden          = errors.New("not authorized to modify this event")

	// ErrVersionConflict is returned by Repository.Update when the stored
	// version moved since the event was read.
	ErrVersionConflict = errors.New("event version conflict")

	// ErrConflict means a mutation kept losing version races and gave up.
	ErrConflict = errors.New("event was modified concurrently, retry the request")
)

const publishRequirement = "Event must have a name and date/time to be published"

// PublishError lists the fields that keep an event from being published.
type PublishError struct {
	Missing validation.Errors
}

func (e PublishError) Error() string {
	return publishRequirement
}

// ConfigError reports module configuration that contradicts the module's
// declared schema.
type ConfigError struct {
	ModuleID string
	Errors   validation.Errors
}

func (e ConfigError) Error() string {
	return "invalid configuration for module " + e.ModuleID + ": " + e.Errors.Error()
}

func (e ConfigError) Unwrap() error {
	return e.Errors
}
