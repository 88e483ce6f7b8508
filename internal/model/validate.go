package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and reports the first failure as a ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fieldName(fe.Field()), Reason: reason(fe)}
}

// ValidateTarget checks a custom timer or word-count value for mode.
func ValidateTarget(mode Mode, value int) error {
	switch mode {
	case ModeTimer:
		if value < MinDuration || value > MaxDuration {
			return &ValidationError{Field: "duration", Reason: fmt.Sprintf("must be between %d and %d", MinDuration, MaxDuration)}
		}
	case ModeWords:
		if value < MinWordCount || value > MaxWordCount {
			return &ValidationError{Field: "words", Reason: fmt.Sprintf("must be between %d and %d", MinWordCount, MaxWordCount)}
		}
	default:
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "alphanum":
		return "must be letters and digits only"
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag()
	}
}

func fieldName(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		upper := r >= 'A' && r <= 'Z'
		if upper && prevLower {
			b.WriteByte('-')
		}
		b.WriteRune(r)
		prevLower = !upper
	}
	return strings.ToLower(b.String())
}
