package domain

import "errors"

// FailureKind tags an activity or orchestration failure. The orchestrator
// branches on the kind only, never on error text.
type FailureKind string

const (
	KindTransientProvider FailureKind = "TransientProviderError"
	KindDataValidation    FailureKind = "DataValidationError"
	KindProviderRejected  FailureKind = "ProviderRejected"
	KindAssessment        FailureKind = "AssessmentError"
	KindBarrierAbort      FailureKind = "BarrierAbortError"
	KindFallbackExhausted FailureKind = "FallbackExhaustedError"
	KindAlreadyResolved   FailureKind = "AlreadyResolved"
	KindIllegalTransition FailureKind = "IllegalTransition"
	KindReviewClosed      FailureKind = "ReviewClosed"
	KindInvalidReview     FailureKind = "InvalidReview"
)

// NonRetryable lists the kinds an activity retry policy must never retry.
var NonRetryable = []string{
	string(KindDataValidation),
	string(KindProviderRejected),
}

var (
	ErrAlreadyResolved = errors.New("review already resolved")
	ErrReviewClosed    = errors.New("application aborted, review gate is closed")
	ErrNotFound        = errors.New("application not found")
	ErrInvalidReview   = errors.New("review action is required")
	ErrReviewPending   = errors.New("review accepted, finalization still in progress")
)
