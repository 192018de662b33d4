package model

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"insight-harvest/internal/domain"
)

// Limits are the configured request bounds. Rune counts, not bytes, so
// multi-byte input is not penalized.
type Limits struct {
	MaxSourceChars int
	MaxQueryChars  int
}

func DefaultLimits() Limits {
	return Limits{MaxSourceChars: 50000, MaxQueryChars: 1000}
}

// CreateRequest carries the client-supplied fields of POST /harvest.
type CreateRequest struct {
	Source       string `json:"source" validate:"required"`
	Query        string `json:"query" validate:"required"`
	Model        string `json:"model,omitempty"`
	TimeoutSecs  int    `json:"timeout,omitempty"`
	OutputFormat string `json:"output_format,omitempty" validate:"omitempty,oneof=text json"`
	CallbackURL  string `json:"callback_url,omitempty" validate:"omitempty,http_url"`
}

// ValidationError reports which field failed and why. It unwraps to
// domain.ErrValidation so callers can classify without string matching.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request against the configured limits. The first
// violation is returned; batch callers surface it per item.
func (r *CreateRequest) Validate(lim Limits) error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ValidationError{Field: "request", Reason: err.Error()}
	}
	if n := utf8.RuneCountInString(r.Source); n > lim.MaxSourceChars {
		return &ValidationError{
			Field:  "source",
			Reason: fmt.Sprintf("exceeds maximum length of %d characters (got %d)", lim.MaxSourceChars, n),
		}
	}
	if n := utf8.RuneCountInString(r.Query); n > lim.MaxQueryChars {
		return &ValidationError{
			Field:  "query",
			Reason: fmt.Sprintf("exceeds maximum length of %d characters (got %d)", lim.MaxQueryChars, n),
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "must not be empty"}
	case "http_url":
		return &ValidationError{Field: field, Reason: "must be a valid http(s) URL"}
	case "oneof":
		return &ValidationError{Field: field, Reason: "must be one of: " + fe.Param()}
	default:
		return &ValidationError{Field: field, Reason: "failed " + fe.Tag() + " validation"}
	}
}

func jsonName(structField string) string {
	switch structField {
	case "Source":
		return "source"
	case "Query":
		return "query"
	case "Model":
		return "model"
	case "TimeoutSecs":
		return "timeout"
	case "OutputFormat":
		return "output_format"
	case "CallbackURL":
		return "callback_url"
	}
	return structField
}
