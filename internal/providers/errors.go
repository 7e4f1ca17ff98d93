package providers

import (
	"errors"
	"fmt"

	"loan-underwriting-orchestrator/internal/domain"
)

// Category is the normalised failure taxonomy for outbound provider calls.
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryOutage      Category = "provider_outage"
	CategoryRateLimited Category = "rate_limited"
	CategoryRejected    Category = "rejected"
	CategoryBadData     Category = "bad_data"
)

type Error struct {
	Category   Category
	Provider   string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Kind maps the category onto the failure kind the orchestrator branches on.
func (e *Error) Kind() domain.FailureKind {
	switch e.Category {
	case CategoryBadData:
		return domain.KindDataValidation
	case CategoryRejected:
		return domain.KindProviderRejected
	default:
		return domain.KindTransientProvider
	}
}

func newError(category Category, provider string, status int, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTimeout || category == CategoryOutage || category == CategoryRateLimited,
	}
}

func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// KindOf returns the failure kind of err. Unclassified errors are treated as
// transient so the retry policy gets a chance at them.
func KindOf(err error) domain.FailureKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind()
	}
	return domain.KindTransientProvider
}
