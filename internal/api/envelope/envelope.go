// Package envelope writes every API response in the shape clients expect:
//
//	{"success": true,  "message": "...", "data": ...,                     "timestamp": "..."}
//	{"success": false, "message": "...", "error": 404, "errors": [...],   "timestamp": "..."}
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/validation"
)

const contentType = "application/json; charset=utf-8"

const (
	MessageSuccess    = "Success"
	MessageValidation = "Validation failed"
	MessageInternal   = "Internal server error"
)

type successBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type errorBody struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Error     int               `json:"error"`
	Errors    validation.Errors `json:"errors,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Now stamps envelopes. Tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }

func timestamp() string {
	return Now().UTC().Format(time.RFC3339)
}

// JSON writes a success envelope with the given status.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	if message == "" {
		message = MessageSuccess
	}
	write(w, status, successBody{Success: true, Message: message, Data: data, Timestamp: timestamp()})
}

func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, message, data)
}

func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, message, data)
}

// Fail writes an error envelope. cause, when non-nil, is logged with the
// request logger: 5xx at error level, 4xx at warn.
func Fail(w http.ResponseWriter, r *http.Request, status int, message string, fieldErrors validation.Errors, cause error) {
	if cause != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(cause).
			Int("status", status).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(message)
	}
	write(w, status, errorBody{
		Success:   false,
		Message:   message,
		Error:     status,
		Errors:    fieldErrors,
		Timestamp: timestamp(),
	})
}

// Error maps err onto its HTTP status and writes the matching envelope.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, message, fieldErrors := Classify(err)
	Fail(w, r, status, message, fieldErrors, err)
}

// Classify maps domain and validation errors to a status, a client-facing
// message, and optional field errors. Unknown errors are 500s whose detail is
// never exposed.
func Classify(err error) (int, string, validation.Errors) {
	var publishErr events.PublishError
	if errors.As(err, &publishErr) {
		return http.StatusBadRequest, publishErr.Error(), publishErr.Missing
	}
	if fieldErrors, ok := validation.AsErrors(err); ok {
		return http.StatusBadRequest, MessageValidation, fieldErrors
	}

	switch {
	case errors.Is(err, events.ErrNotFound):
		return http.StatusNotFound, "Event not found", nil
	case errors.Is(err, events.ErrModuleNotFound):
		return http.StatusNotFound, "Module not found or inactive", nil
	case errors.Is(err, events.ErrAttachmentNotFound):
		return http.StatusNotFound, "Module not found in event", nil
	case errors.Is(err, events.ErrForbidden):
		return http.StatusForbidden, "Not authorized to modify this event", nil
	case errors.Is(err, events.ErrConflict):
		return http.StatusConflict, "Event was modified concurrently, retry the request", nil
	}
	return http.StatusInternalServerError, MessageInternal, nil
}

func write(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error","error":500}`))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
