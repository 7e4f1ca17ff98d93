package assessment

import (
	"context"
	"fmt"

	"loan-underwriting-orchestrator/internal/domain"
)

// StaticNarrator renders a deterministic rationale from the verdict alone.
type StaticNarrator struct{}

func (StaticNarrator) Narrate(_ context.Context, dim domain.Dimension, _ domain.Application, _ any, verdict any) (string, error) {
	switch v := verdict.(type) {
	case domain.CreditJudgement:
		return fmt.Sprintf("%s reports a score of %.0f, which places the applicant in the %s risk band.",
			v.Provider, v.Score, v.RiskLevel), nil
	case domain.IncomeJudgement:
		verb := "meets"
		if !v.AffordabilityOK {
			verb = "does not meet"
		}
		return fmt.Sprintf("Annual income of %.2f against a loan of %.2f gives a ratio of %.2f, which %s the %.1fx requirement.",
			v.AnnualIncome, v.LoanAmount, v.Ratio, verb, domain.MinIncomeToLoanRatio), nil
	case domain.ExpenseJudgement:
		if v.AffordabilityOK {
			return fmt.Sprintf("Disposable monthly income of %.2f leaves room for repayment.", v.DisposableIncome), nil
		}
		return fmt.Sprintf("Disposable monthly income of %.2f leaves no room for repayment.", v.DisposableIncome), nil
	default:
		return fmt.Sprintf("%s assessment completed.", dim), nil
	}
}
