package temporal

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"loan-underwriting-orchestrator/internal/domain"
)

// applicationError tags err with kind so the workflow can branch on the type
// alone. Non-retryable kinds are marked as such on the error too.
func applicationError(kind domain.FailureKind, message string, cause error) error {
	for _, nr := range domain.NonRetryable {
		if string(kind) == nr {
			return temporal.NewNonRetryableApplicationError(message, string(kind), cause)
		}
	}
	return temporal.NewApplicationErrorWithCause(message, string(kind), cause)
}

// failureKind reads the kind tag from an activity error. Timeouts, including
// the ScheduleToClose ceiling, count as transient provider failures.
func failureKind(err error) domain.FailureKind {
	if err == nil {
		return ""
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return domain.FailureKind(appErr.Type())
	}
	return domain.KindTransientProvider
}

// causeMessage is the most specific human readable message in the chain.
func causeMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "activity ceiling reached: " + timeoutErr.Error()
	}
	return err.Error()
}
