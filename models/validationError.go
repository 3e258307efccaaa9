package models

import "strings"

// ValidationError carries field-scoped messages so the HTTP layer can
// render a 422 body that points at the offending input.
type ValidationError struct {
	Errors map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, messages := range e.Errors {
		for _, m := range messages {
			parts = append(parts, field+": "+m)
		}
	}
	return strings.Join(parts, "; ")
}

func NewValidationError(field string, messages ...string) *ValidationError {
	return &ValidationError{Errors: map[string][]string{field: messages}}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	ve, ok := err.(*ValidationError)
	return ve, ok
}
