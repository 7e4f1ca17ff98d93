package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loan-underwriting-orchestrator/internal/domain"
)

const (
	ActivityPolicyFetchBank       = "fetch_bank"
	ActivityPolicyFetchDocuments  = "fetch_documents"
	ActivityPolicyFetchCreditMain = "fetch_credit_primary"
	ActivityPolicyFetchCreditAlt  = "fetch_credit_fallback"
	ActivityPolicyAssess          = "assess"
	ActivityPolicyBookkeeping     = "bookkeeping"
)

// DefaultActivityCeiling bounds the total time a retried activity may spend
// before the orchestrator treats it as exhausted.
const DefaultActivityCeiling = 15 * time.Minute

// PrimaryBureauMaxAttempts is kept short so the fallback bureau is reached
// deterministically when the primary keeps failing.
const PrimaryBureauMaxAttempts = 2

type activityPolicy struct {
	StartToCloseTimeout time.Duration
	// Bounded marks policies whose total runtime is capped by the ceiling.
	Bounded     bool
	RetryPolicy temporal.RetryPolicy
}

func unlimitedRetry() temporal.RetryPolicy {
	return temporal.RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    0,
	}
}

var activityPolicies = map[string]activityPolicy{
	ActivityPolicyFetchBank: {
		StartToCloseTimeout: 2 * time.Minute,
		Bounded:             true,
		RetryPolicy:         unlimitedRetry(),
	},
	ActivityPolicyFetchDocuments: {
		StartToCloseTimeout: 2 * time.Minute,
		Bounded:             true,
		RetryPolicy:         unlimitedRetry(),
	},
	ActivityPolicyFetchCreditMain: {
		StartToCloseTimeout: 2 * time.Minute,
		Bounded:             true,
		RetryPolicy: temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 1,
			MaximumInterval:    1 * time.Second,
			MaximumAttempts:    PrimaryBureauMaxAttempts,
		},
	},
	ActivityPolicyFetchCreditAlt: {
		StartToCloseTimeout: 2 * time.Minute,
		Bounded:             true,
		RetryPolicy:         unlimitedRetry(),
	},
	ActivityPolicyAssess: {
		StartToCloseTimeout: 2 * time.Minute,
		Bounded:             true,
		RetryPolicy:         unlimitedRetry(),
	},
	ActivityPolicyBookkeeping: {
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy: temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	},
}

// ActivityOptionsFor resolves a named policy. ceiling becomes the
// ScheduleToClose timeout of bounded policies; zero means the default.
func ActivityOptionsFor(policyName string, ceiling time.Duration) (workflow.ActivityOptions, error) {
	policy, ok := activityPolicies[policyName]
	if !ok {
		return workflow.ActivityOptions{}, fmt.Errorf("unknown activity policy: %s", policyName)
	}
	if ceiling <= 0 {
		ceiling = DefaultActivityCeiling
	}

	retry := policy.RetryPolicy
	retry.NonRetryableErrorTypes = append([]string(nil), domain.NonRetryable...)
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: policy.StartToCloseTimeout,
		RetryPolicy:         &retry,
	}
	if policy.Bounded {
		ao.ScheduleToCloseTimeout = ceiling
	}
	return ao, nil
}

func mustActivityContext(ctx workflow.Context, policyName string, ceiling time.Duration) workflow.Context {
	ao, err := ActivityOptionsFor(policyName, ceiling)
	if err != nil {
		panic(err)
	}
	return workflow.WithActivityOptions(ctx, ao)
}
