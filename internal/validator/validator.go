// Package validator wraps go-playground/validator with the custom tags
// Union Square's configuration structs need, so struct-tag validation
// stays declarative (config.ProxyConfig's `validate:"..."` tags) instead
// of hand-written field checks scattered through config.Load.
package validator

import (
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("bindaddr", validateBindAddr)
}

// ValidateStruct validates s against its `validate` struct tags.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateFields validates s and returns a field-name -> message map, for
// callers (e.g. a future config-reload endpoint) that want to report every
// violation at once rather than just the first error.
func ValidateFields(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			fields[strings.ToLower(e.Field())] = formatValidationError(e)
		}
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "bindaddr":
		return "must be a valid host:port address"
	default:
		return fmt.Sprintf("validation failed on %q", e.Tag())
	}
}

// validateBindAddr checks that the field is a syntactically valid
// "host:port" bind address (host may be empty, e.g. ":8080").
func validateBindAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	return port != ""
}
