package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// dateTokens are the placeholders understood by the date formatter.
var dateTokens = []string{"YYYY", "MM", "DD", "HH", "mm", "ss"}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	hasToken := false

	for _, tok := range dateTokens {
		if strings.Contains(cfg.DateTimeFormat, tok) {
			hasToken = true

			break
		}
	}

	if !hasToken {
		return fmt.Errorf("date_time_format: %q contains none of %s",
			cfg.DateTimeFormat, strings.Join(dateTokens, ", "))
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]

		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}

	return err
}
