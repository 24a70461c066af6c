// Package validate runs struct-tag validation and reports failures as
// apperr validation errors.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/crucial707/postfeed/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of the "data" array in a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"msg"`
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s and returns an *apperr.Error with per-field details,
// or nil. Callers trim string fields before validating.
func Struct(message string, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindInternal, "validation", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return apperr.Validation(message, fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "Please enter a valid email."
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
