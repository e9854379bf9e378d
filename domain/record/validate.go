// Package record validates and normalizes record payloads against a
// collection's field schema. Validation is pure and accumulating: every
// independent check runs and reports, nothing panics, nothing is coerced
// across types (CSV-style coercion is the ingestion layer's problem).
package record

import (
	"fmt"
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/fieldbase/fieldbase/domain/schema"
)

// FieldError describes one validation failure attributed to a field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of validating one payload.
type Result struct {
	Valid      bool
	Errors     []FieldError
	Normalized map[string]any
}

func (r *Result) addError(field, code string, value any, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Value: value, Message: message})
}

// Validate checks data against fields and returns the accumulated errors plus
// the normalized payload (defaults applied, valid values copied unchanged).
// On update, absent fields are not required; an explicit null still is.
func Validate(data map[string]any, fields []schema.Field, isUpdate bool) Result {
	result := Result{Valid: true, Normalized: make(map[string]any)}

	known := make(map[string]schema.Field, len(fields))
	for _, f := range fields {
		known[f.Slug] = f
	}

	// Unknown keys fail loud; validation of known keys proceeds regardless.
	for key := range data {
		if _, ok := known[key]; !ok {
			result.addError(key, "unknown_field", nil,
				fmt.Sprintf("unknown field %q: not defined in collection schema", key))
		}
	}

	for _, field := range fields {
		value, present := data[field.Slug]
		missing := !present || value == nil

		if missing {
			switch {
			case field.Required && present && isUpdate:
				// Explicit null on update cannot clear a required field.
				result.addError(field.Slug, "required", nil, "field is required")
			case field.Required && !isUpdate:
				result.addError(field.Slug, "required", nil, "field is required")
			case field.Default != nil && !isUpdate:
				result.Normalized[field.Slug] = field.Default
			case present && isUpdate:
				// Explicit null clears an optional field.
				result.Normalized[field.Slug] = nil
			}
			continue
		}

		before := len(result.Errors)
		validateValue(&result, field, value)
		if len(result.Errors) == before {
			result.Normalized[field.Slug] = value
		}
	}

	return result
}

// validateValue runs the type-specific check for one present, non-null value.
func validateValue(result *Result, field schema.Field, value any) {
	switch field.Type {
	case schema.FieldTypeText, schema.FieldTypeTextarea:
		str, ok := value.(string)
		if !ok {
			result.addError(field.Slug, "type", value, "must be a string")
			return
		}
		length := utf8.RuneCountInString(str)
		if min := field.Options.MinLength; min != nil && length < *min {
			result.addError(field.Slug, "min_length", value,
				fmt.Sprintf("must be at least %d characters", *min))
		}
		if max := field.Options.MaxLength; max != nil && length > *max {
			result.addError(field.Slug, "max_length", value,
				fmt.Sprintf("must be at most %d characters", *max))
		}
		if p := field.Options.Pattern; p != "" {
			// An uncompilable pattern is a schema authoring problem, not a
			// record problem; it is ignored here.
			if re, err := regexp.Compile(p); err == nil && !re.MatchString(str) {
				result.addError(field.Slug, "pattern", value,
					fmt.Sprintf("must match pattern %s", p))
			}
		}

	case schema.FieldTypeNumber:
		num, ok := asNumber(value)
		if !ok {
			result.addError(field.Slug, "type", value, "must be a number")
			return
		}
		if min := field.Options.Min; min != nil && num < *min {
			result.addError(field.Slug, "min", value, fmt.Sprintf("must be >= %v", *min))
		}
		if max := field.Options.Max; max != nil && num > *max {
			result.addError(field.Slug, "max", value, fmt.Sprintf("must be <= %v", *max))
		}

	case schema.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			result.addError(field.Slug, "type", value, "must be a boolean")
		}

	case schema.FieldTypeDate:
		str, ok := value.(string)
		if !ok {
			result.addError(field.Slug, "type", value, "must be a date string (YYYY-MM-DD)")
			return
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			result.addError(field.Slug, "format", value, "must be a valid date (YYYY-MM-DD)")
		}

	case schema.FieldTypeDatetime:
		str, ok := value.(string)
		if !ok {
			result.addError(field.Slug, "type", value, "must be an ISO-8601 timestamp string")
			return
		}
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			result.addError(field.Slug, "format", value, "must be a valid ISO-8601 timestamp")
		}

	case schema.FieldTypeSelect:
		str, ok := value.(string)
		if !ok {
			result.addError(field.Slug, "type", value, "must be a string")
			return
		}
		if !field.Options.HasChoice(str) {
			result.addError(field.Slug, "choice", value,
				fmt.Sprintf("%q is not an allowed choice", str))
		}

	case schema.FieldTypeMultiSelect:
		items, ok := asSlice(value)
		if !ok {
			result.addError(field.Slug, "type", value, "must be an array")
			return
		}
		for i, item := range items {
			str, ok := item.(string)
			if !ok {
				result.addError(field.Slug, "type", item,
					fmt.Sprintf("element %d must be a string", i))
				return
			}
			if !field.Options.HasChoice(str) {
				result.addError(field.Slug, "choice", item,
					fmt.Sprintf("%q is not an allowed choice", str))
				return
			}
		}

	case schema.FieldTypeRelation:
		// Referential integrity is checked at storage level, not here.
		if _, ok := value.(string); !ok {
			result.addError(field.Slug, "type", value, "must be a record id string")
		}

	case schema.FieldTypeJSON:
		// Any defined value is acceptable.

	default:
		// Unknown field type: no validation (forward compatibility).
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
