package handlers

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/go-playground/validator/v10"
)

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("basicstring", validateBasicString)
	return v
}

// validateBasicString rejects control characters, so values are safe to log
// and echo back
func validateBasicString(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidateRequest validates a request struct using go-playground/validator.
// The first failing field becomes the message of a models.ValidationError.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return models.NewValidationError(fmt.Sprintf("%s: %s", ve[0].Field(), formatValidationError(ve[0])))
	}
	return models.NewValidationError("Invalid request")
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "basicstring":
		return "must not contain control characters"
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
