package domain

import (
	"fmt"
	"math"
)

const (
	MinCreditScore = 300
	MaxCreditScore = 850

	scoreLow        = 750
	scoreMedium     = 650
	scoreMediumHigh = 620

	// Annual income must cover the requested amount at least this many times.
	MinIncomeToLoanRatio = 2.5
)

func ClassifyCreditRisk(score float64) RiskLevel {
	switch {
	case score >= scoreLow:
		return RiskLow
	case score >= scoreMedium:
		return RiskMedium
	case score >= scoreMediumHigh:
		return RiskMediumHigh
	default:
		return RiskHigh
	}
}

func ValidateCreditScore(score float64) error {
	if math.IsNaN(score) || score < MinCreditScore || score > MaxCreditScore {
		return fmt.Errorf("credit score %v outside [%d, %d]", score, MinCreditScore, MaxCreditScore)
	}
	return nil
}

func EvaluateCredit(rec CreditRecord) CreditJudgement {
	return CreditJudgement{
		Score:     rec.Score,
		RiskLevel: ClassifyCreditRisk(rec.Score),
		Provider:  rec.Provider,
	}
}

func EvaluateIncome(app Application) IncomeJudgement {
	annual := app.MonthlyIncome * 12
	raw := 0.0
	if app.Amount > 0 {
		raw = annual / app.Amount
	}
	// The threshold applies to the unrounded ratio; only the reported value is rounded.
	return IncomeJudgement{
		MonthlyIncome:   app.MonthlyIncome,
		LoanAmount:      app.Amount,
		AnnualIncome:    annual,
		Ratio:           round2(raw),
		AffordabilityOK: raw >= MinIncomeToLoanRatio,
	}
}

func EvaluateExpense(app Application) ExpenseJudgement {
	disposable := app.MonthlyIncome - app.MonthlyExpenses
	return ExpenseJudgement{
		MonthlyIncome:    app.MonthlyIncome,
		MonthlyExpenses:  app.MonthlyExpenses,
		DisposableIncome: disposable,
		AffordabilityOK:  disposable > 0,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
