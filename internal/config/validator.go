package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate validates the GatewayConfig using struct tags and cross-field
// rules.
func (c *GatewayConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateTimeouts(); err != nil {
		return err
	}

	return nil
}

// validateTimeouts ensures Default and Max both parse as durations and
// Default does not exceed Max.
func (c *GatewayConfig) validateTimeouts() error {
	def, err := time.ParseDuration(c.Timeouts.Default)
	if err != nil {
		return fmt.Errorf("timeouts.default: %w", err)
	}
	max, err := time.ParseDuration(c.Timeouts.Max)
	if err != nil {
		return fmt.Errorf("timeouts.max: %w", err)
	}
	if def > max {
		return fmt.Errorf("timeouts.default (%s) must not exceed timeouts.max (%s)", c.Timeouts.Default, c.Timeouts.Max)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
