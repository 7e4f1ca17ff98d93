package domain

import (
	"fmt"
	"strings"
	"time"
)

// Aggregate derives the suggested decision from the three judgements. It is a
// pure function: the workflow runs it inline, so it must stay deterministic.
func Aggregate(b AssessmentBundle) SuggestedDecision {
	creditOK := b.Credit.RiskLevel.Acceptable()
	incomeOK := b.Income.AffordabilityOK
	expenseOK := b.Expense.AffordabilityOK

	out := SuggestedDecision{
		Credit:  b.Credit,
		Income:  b.Income,
		Expense: b.Expense,
	}
	switch {
	case !creditOK || !incomeOK:
		out.Decision, out.Confidence = DecisionReject, ConfidenceHigh
	case expenseOK:
		out.Decision, out.Confidence = DecisionApprove, ConfidenceHigh
	default:
		out.Decision, out.Confidence = DecisionReview, ConfidenceMedium
	}
	out.Rationale = aggregateRationale(out.Decision, b)
	return out
}

func aggregateRationale(decision Decision, b AssessmentBundle) string {
	factors := []string{
		fmt.Sprintf("credit risk %s (score %.0f via %s)", b.Credit.RiskLevel, b.Credit.Score, b.Credit.Provider),
		fmt.Sprintf("income to loan ratio %.2f (%s)", b.Income.Ratio, okWord(b.Income.AffordabilityOK)),
		fmt.Sprintf("disposable income %.2f (%s)", b.Expense.DisposableIncome, okWord(b.Expense.AffordabilityOK)),
	}
	return fmt.Sprintf("suggested %s: %s", decision, strings.Join(factors, "; "))
}

func okWord(ok bool) string {
	if ok {
		return "adequate"
	}
	return "inadequate"
}

const FinalDecisionManualOverride = "manual_override"

// Finalize combines the suggestion with the human outcome. approve and reject
// take precedence over the suggestion; any other action is kept verbatim as a
// manual override.
func Finalize(workflowID string, app Application, suggested SuggestedDecision, review ReviewOutcome, at time.Time) FinalRecord {
	rec := FinalRecord{
		WorkflowID:  workflowID,
		Application: app,
		Suggested:   suggested,
		Review:      review,
		FinalizedAt: at,
	}
	switch Decision(strings.ToLower(strings.TrimSpace(review.Action))) {
	case DecisionApprove:
		rec.FinalDecision = string(DecisionApprove)
	case DecisionReject:
		rec.FinalDecision = string(DecisionReject)
	default:
		rec.FinalDecision = FinalDecisionManualOverride
		rec.ManualOverride = true
		rec.OverrideAction = review.Action
	}
	return rec
}
