package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidJSON is returned when the body cannot be decoded
var ErrInvalidJSON = errors.New("invalid request body")

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	// compare money with gt/gte/lte as a number
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return ValidateRequest(v)
}

// RespondWithDecodeError writes the 400 matching an error from DecodeAndValidate
func RespondWithDecodeError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		RespondWithValidationErrors(w, FormatValidationErrors(err))
		return
	}
	RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var result []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			result = append(result, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return result
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "url":
		return "Invalid URL"
	case "oneof":
		return "Value must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}
