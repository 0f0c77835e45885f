package document

import (
	"errors"
	"fmt"
)

// Validation errors. Callers compare with errors.Is.
var (
	ErrFieldNotDeclared = errors.New("field not declared in schema")
	ErrFieldRequired    = errors.New("field is required")
	ErrTypeMismatch     = errors.New("record does not belong to the store model")
	ErrEmptyField       = errors.New("field name must not be empty")
	ErrUnknownAccessor  = errors.New("unknown accessor")
	ErrInvalidID        = errors.New("invalid document id")
)

// ErrSchema reports an invalid model definition. It is a configuration error
// and is returned at model construction time.
var ErrSchema = errors.New("invalid schema")

// FieldError ties a validation error to the model and field that caused it.
type FieldError struct {
	Model string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Model, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// RequiredFieldError is returned by Store.Save when a required field is missing.
type RequiredFieldError struct {
	Model  string
	Fields []string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("%s: missing required fields %v", e.Model, e.Fields)
}

func (e *RequiredFieldError) Unwrap() error { return ErrFieldRequired }

func fieldError(model, field string, err error) error {
	return &FieldError{Model: model, Field: field, Err: err}
}
