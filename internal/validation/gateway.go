package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{1,4}[)]?[-\s./0-9]*$`)

// FieldError is one violated constraint, addressed by its wire (JSON) path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Errors is the ordered list of every violation found in a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// AsErrors unwraps err into Errors when it carries field violations.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return Errors{fe}, true
	}
	return nil, false
}

// Defaulter is implemented by schemas that fill in defaults before validation.
type Defaulter interface {
	ApplyDefaults()
}

// MessageProvider lets a schema override messages, keyed by "field.tag".
type MessageProvider interface {
	ValidationMessages() map[string]string
}

// Gateway applies declarative struct-tag schemas to decoded payloads. It is
// safe for concurrent use.
type Gateway struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Gateway)

// WithClock replaces the clock used by time-relative rules.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func New(opts ...Option) *Gateway {
	g := &Gateway{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	mustRegister(g.validate, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(g.validate, "isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDateTime(fl.Field().String())
		return err == nil
	})
	mustRegister(g.validate, "future", func(fl validator.FieldLevel) bool {
		parsed, err := ParseDateTime(fl.Field().String())
		if err != nil {
			return false
		}
		return parsed.After(g.now())
	})
	mustRegister(g.validate, "weburl", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value != "" && ValidateURL(value, fl.FieldName(), false) == nil
	})

	return g
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Decode reads a JSON object from r into dst, dropping unknown fields, then
// applies defaults and validates.
func (g *Gateway) Decode(r io.Reader, dst any) error {
	if err := ReadJSON(r, dst); err != nil {
		return err
	}
	return g.Struct(dst)
}

// ReadJSON decodes exactly one JSON value from r into dst without validating
// it. Unknown fields are dropped. Malformed input and anything after the
// value other than whitespace are reported as field errors.
func ReadJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return Errors{{Field: "body", Message: "request body is required"}}
		}
		return decodeError(err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err == nil {
			return Errors{{Field: "body", Message: "must be a valid JSON object"}}
		}
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return Errors{{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}}
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return Errors{{Field: "body", Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}}
	}
	return Errors{{Field: "body", Message: "must be a valid JSON object"}}
}

// Struct applies defaults and validates v, returning Errors with every
// violation or nil.
func (g *Gateway) Struct(v any) error {
	if d, ok := v.(Defaulter); ok {
		d.ApplyDefaults()
	}

	err := g.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	var overrides map[string]string
	if mp, ok := v.(MessageProvider); ok {
		overrides = mp.ValidationMessages()
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		msg, ok := overrides[field+"."+fe.Tag()]
		if !ok {
			msg = overrides[fe.Field()+"."+fe.Tag()]
		}
		if msg == "" {
			msg = describe(fe)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	return out
}

// Var validates a single value (path or query parameter) under field.
func (g *Gateway) Var(field string, value any, tag string) error {
	err := g.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %s: %w", field, err)
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: field, Message: describeTag(fe.Tag(), fe.Param(), fe.Kind())})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace:
// "CreateEventInput.links[0].url" becomes "links[0].url".
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	return describeTag(fe.Tag(), fe.Param(), fe.Kind())
}

func describeTag(tag, param string, kind reflect.Kind) string {
	switch tag {
	case "required":
		return "is required"
	case "min":
		if kind == reflect.String {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		if kind == reflect.Slice || kind == reflect.Map {
			return fmt.Sprintf("must contain at least %s items", param)
		}
		return fmt.Sprintf("must be greater than or equal to %s", param)
	case "max":
		if kind == reflect.String {
			return fmt.Sprintf("cannot exceed %s characters", param)
		}
		if kind == reflect.Slice || kind == reflect.Map {
			return fmt.Sprintf("cannot contain more than %s items", param)
		}
		return fmt.Sprintf("must be less than or equal to %s", param)
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", param)
	case "oneof":
		return "must be one of [" + strings.Join(strings.Fields(param), ", ") + "]"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "url", "uri", "weburl":
		return "must be a valid URI"
	case "phone":
		return "must be a valid phone number"
	case "isodate":
		return "must be a valid ISO-8601 date"
	case "future":
		return "must be in the future"
	case "timezone":
		return "must be a valid IANA timezone"
	default:
		return "failed " + tag + " validation"
	}
}

// ParseDateTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC).
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return parsed.UTC(), nil
}
