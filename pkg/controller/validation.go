package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Validator is implemented by request bodies with custom validation.
type Validator interface {
	Validate() error
}

// maxBodyBytes bounds request bodies read by DecodeJSON, whatever limit the
// server applies in front of it.
const maxBodyBytes = 1 << 20

// DecodeJSON reads r's JSON body into dto and validates it.
func DecodeJSON(r *http.Request, dto any) error {
	if r == nil || r.Body == nil {
		return NewValidationError("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dto); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &AppError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", tooLarge.Limit),
			}
		}
		return NewValidationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return ValidateDTO(dto)
}

// ValidateDTO runs dto's Validate method when it has one, otherwise checks
// fields tagged validate:"required" for zero values.
func ValidateDTO(dto any) error {
	if dto == nil {
		return NewValidationError("dto cannot be nil")
	}
	v := reflect.ValueOf(dto)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return NewValidationError("dto cannot be nil")
	}

	if validator, ok := dto.(Validator); ok {
		if err := validator.Validate(); err != nil {
			if _, isApp := err.(*AppError); isApp {
				return err
			}
			return NewValidationError(err.Error())
		}
		return nil
	}
	return validateStruct(v)
}

func validateStruct(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	var missing []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag := field.Tag.Get("validate"); strings.Contains(tag, "required") && v.Field(i).IsZero() {
			missing = append(missing, jsonName(field))
		}
	}
	if len(missing) > 0 {
		return NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
