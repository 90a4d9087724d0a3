package helper

import (
	"errors"
	"sort"
	"strings"
)

// ValidationError collects one message per field. The zero value is ready to use.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add keeps the first message recorded for a field.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = map[string]string{}
	}
	if _, exists := v.Fields[field]; !exists {
		v.Fields[field] = message
	}
}

func (v *ValidationError) Empty() bool { return v == nil || len(v.Fields) == 0 }

// OrNil returns nil when nothing was collected, so callers can return it directly.
func (v *ValidationError) OrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err to a *ValidationError when it carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
