package domain

import "strings"

type ValidationResult struct {
	FailedRules []string `json:"failed_rules"`
}

func ValidateApplication(a Application) ValidationResult {
	failed := make([]string, 0)

	if strings.TrimSpace(a.ApplicantID) == "" {
		failed = append(failed, "application.applicant_id_required")
	}
	if strings.TrimSpace(a.Name) == "" {
		failed = append(failed, "application.name_required")
	}
	if a.Amount <= 0 {
		failed = append(failed, "application.amount_gt_zero")
	}
	if a.MonthlyIncome < 0 {
		failed = append(failed, "application.income_non_negative")
	}
	if a.MonthlyExpenses < 0 {
		failed = append(failed, "application.expenses_non_negative")
	}

	return ValidationResult{FailedRules: failed}
}

func ValidationPassed(r ValidationResult) bool {
	return len(r.FailedRules) == 0
}

func ValidateReviewOutcome(r ReviewOutcome) ValidationResult {
	failed := make([]string, 0)
	if strings.TrimSpace(r.Action) == "" {
		failed = append(failed, "review.action_required")
	}
	return ValidationResult{FailedRules: failed}
}
