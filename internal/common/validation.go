package common

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ValidationError is one rejected field of a job request or config value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s (%v) %s", e.Field, e.Value, e.Message)
}

// ValidationRule checks one value and returns nil when it is acceptable.
type ValidationRule func(field string, value any) *ValidationError

// Validator accumulates field failures so a caller sees every problem with a
// job request at once rather than the first.
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order; every failing rule is recorded.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if f := rule(field, value); f != nil {
			v.failures = append(v.failures, *f)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

func (v *Validator) Errors() []ValidationError { return v.failures }

// ErrorMessage joins every failure with "; ".
func (v *Validator) ErrorMessage() string {
	parts := make([]string, len(v.failures))
	for i, f := range v.failures {
		parts[i] = f.Error()
	}
	return strings.Join(parts, "; ")
}

// Err returns nil or an InvalidInput error carrying every collected message.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return InvalidInput(v.ErrorMessage(), ErrValidation)
}

// Required rejects nil, blank strings and empty payloads.
func Required(field string, value any) *ValidationError {
	missing := value == nil
	shown := value
	switch x := value.(type) {
	case string:
		missing = strings.TrimSpace(x) == ""
	case []byte:
		missing = len(x) == 0
		shown = fmt.Sprintf("%d bytes", len(x))
	}
	if !missing {
		return nil
	}
	return &ValidationError{Field: field, Value: shown, Message: "is required"}
}

// MaxBytes caps the size of an upload; non-byte values pass.
func MaxBytes(limit int64) ValidationRule {
	return func(field string, value any) *ValidationError {
		b, ok := value.([]byte)
		if !ok || int64(len(b)) <= limit {
			return nil
		}
		return &ValidationError{
			Field:   field,
			Value:   fmt.Sprintf("%d bytes", len(b)),
			Message: fmt.Sprintf("must be at most %d bytes", limit),
		}
	}
}

// OneOf restricts a string to a fixed set. Empty means "use the default"
// and is accepted.
func OneOf(allowed ...string) ValidationRule {
	return func(field string, value any) *ValidationError {
		s, _ := value.(string)
		if s == "" || slices.Contains(allowed, s) {
			return nil
		}
		return &ValidationError{
			Field:   field,
			Value:   s,
			Message: "must be one of " + strings.Join(allowed, ", "),
		}
	}
}

// UUID accepts an empty string (the id is generated) or a parseable UUID.
func UUID(field string, value any) *ValidationError {
	s, ok := value.(string)
	switch {
	case !ok:
		return &ValidationError{Field: field, Value: value, Message: "must be a string"}
	case s == "":
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Field: field, Value: s, Message: "is not a valid job id"}
	}
	return nil
}
