package domain

import "fmt"

type State string

const (
	StateInitiated         State = "INITIATED"
	StateAcquiring         State = "ACQUIRING"
	StateAcquiringFallback State = "ACQUIRING_FALLBACK"
	StateAssessing         State = "ASSESSING"
	StateAggregating       State = "AGGREGATING"
	StateAwaitingReview    State = "AWAITING_REVIEW"
	StateFinalized         State = "FINALIZED"
	StateAborted           State = "ABORTED"
)

var transitions = map[State][]State{
	StateInitiated:         {StateAcquiring},
	StateAcquiring:         {StateAcquiringFallback, StateAssessing},
	StateAcquiringFallback: {StateAssessing},
	StateAssessing:         {StateAggregating},
	StateAggregating:       {StateAwaitingReview},
	StateAwaitingReview:    {StateFinalized},
}

func (s State) Terminal() bool {
	return s == StateFinalized || s == StateAborted
}

// CanTransition reports whether from -> to is a legal edge. ABORTED is
// reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
}

type Provider string

const (
	ProviderCIBIL    Provider = "CIBIL"
	ProviderExperian Provider = "Experian"
)

const DataQualityValidated = "validated"

type RiskLevel string

const (
	RiskLow        RiskLevel = "low"
	RiskMedium     RiskLevel = "medium"
	RiskMediumHigh RiskLevel = "medium-high"
	RiskHigh       RiskLevel = "high"
)

// Acceptable is true for the levels that do not block an approval on their own.
func (r RiskLevel) Acceptable() bool {
	return r == RiskLow || r == RiskMedium
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionReview  Decision = "review"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

type Dimension string

const (
	DimensionCredit  Dimension = "credit"
	DimensionIncome  Dimension = "income"
	DimensionExpense Dimension = "expense"
)
