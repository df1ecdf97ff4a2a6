package modules

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/eventdeck/server/internal/validation"
)

// FieldSchema describes one configuration key of a module. Schema describes
// the object shape of array elements when set.
type FieldSchema struct {
	Type     string                 `yaml:"type" json:"type"`
	Default  any                    `yaml:"default,omitempty" json:"default,omitempty"`
	Min      *float64               `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64               `yaml:"max,omitempty" json:"max,omitempty"`
	Enum     []string               `yaml:"enum,omitempty" json:"enum,omitempty"`
	Format   string                 `yaml:"format,omitempty" json:"format,omitempty"`
	Optional bool                   `yaml:"optional,omitempty" json:"optional,omitempty"`
	Schema   map[string]FieldSchema `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// ConfigSchema maps configuration keys to their schema.
type ConfigSchema map[string]FieldSchema

// Defaults returns the default value of every key that declares one.
func (s ConfigSchema) Defaults() map[string]any {
	out := make(map[string]any, len(s))
	for key, field := range s {
		if field.Default != nil {
			out[key] = field.Default
		}
	}
	return out
}

// Check reports every value in config that contradicts its declared schema.
// Keys absent from the schema are accepted; configuration is free-form.
func (s ConfigSchema) Check(config map[string]any) validation.Errors {
	var errs validation.Errors
	for _, key := range slices.Sorted(maps.Keys(config)) {
		field, ok := s[key]
		if !ok {
			continue
		}
		errs = append(errs, field.check("config."+key, config[key])...)
	}
	return errs
}

func (f FieldSchema) check(path string, value any) validation.Errors {
	if value == nil {
		return nil
	}

	switch f.Type {
	case "number":
		n, ok := asNumber(value)
		if !ok {
			return fieldErr(path, "must be a number")
		}
		if f.Min != nil && n < *f.Min {
			return fieldErr(path, "must be greater than or equal to "+formatNumber(*f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return fieldErr(path, "must be less than or equal to "+formatNumber(*f.Max))
		}
	case "string":
		str, ok := value.(string)
		if !ok {
			return fieldErr(path, "must be a string")
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, str) {
			return fieldErr(path, "must be one of ["+strings.Join(f.Enum, ", ")+"]")
		}
		if f.Format == "uri" {
			if err := validation.ValidateURL(str, path, false); err != nil {
				return fieldErr(path, "must be a valid URI")
			}
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fieldErr(path, "must be a boolean")
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fieldErr(path, "must be an object")
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			return fieldErr(path, "must be an array")
		}
		if len(f.Schema) == 0 {
			return nil
		}
		var errs validation.Errors
		for i, item := range items {
			errs = append(errs, checkItem(f.Schema, fmt.Sprintf("%s[%d]", path, i), item)...)
		}
		return errs
	}
	return nil
}

func checkItem(schema map[string]FieldSchema, path string, item any) validation.Errors {
	obj, ok := item.(map[string]any)
	if !ok {
		return fieldErr(path, "must be an object")
	}

	var errs validation.Errors
	for _, key := range slices.Sorted(maps.Keys(schema)) {
		field := schema[key]
		value, present := obj[key]
		if !present || value == nil {
			if !field.Optional && field.Default == nil {
				errs = append(errs, validation.FieldError{Field: path + "." + key, Message: "is required"})
			}
			continue
		}
		errs = append(errs, field.check(path+"."+key, value)...)
	}
	return errs
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func fieldErr(path, msg string) validation.Errors {
	return validation.Errors{{Field: path, Message: msg}}
}

