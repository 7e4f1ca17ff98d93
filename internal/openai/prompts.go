package openai

import (
	"encoding/json"
	"strings"

	"loan-underwriting-orchestrator/internal/domain"
)

const RATIONALE_OUTPUT_RULES = `
Output ONLY a JSON object of the form {"rationale": "<text>"}.
No markdown. No extra keys. Keep the rationale under 120 words.
The numeric verdict below is final: explain it, never contradict it.`

const CREDIT_SYSTEM = `You are a credit risk assessment specialist for loan underwriting.
Explain the risk level of an applicant from the bureau report.
Risk bands: score >= 750 low, 650-749 medium, 620-649 medium-high, below 620 high.` + RATIONALE_OUTPUT_RULES

const INCOME_SYSTEM = `You are an income verification and affordability specialist.
Explain whether the applicant can afford the loan from declared income and bank data.
Annual income should be at least 2.5 times the requested amount.` + RATIONALE_OUTPUT_RULES

const EXPENSE_SYSTEM = `You are an expense analysis and cash flow specialist.
Explain the applicant's repayment capacity from declared expenses and bank data.
Disposable income must be positive.` + RATIONALE_OUTPUT_RULES

const ASSESSMENT_USER_TEMPLATE = `Applicant: {{NAME}}
Loan amount: {{AMOUNT}}
Monthly income: {{INCOME}}
Monthly expenses: {{EXPENSES}}

Source data:
{{SOURCE_DATA}}

Computed verdict:
{{VERDICT}}

Return JSON only.`

func RenderTemplate(tpl string, vars map[string]string) string {
	rendered := tpl
	for k, v := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
	}
	return rendered
}

func SystemPromptFor(dim domain.Dimension) string {
	switch dim {
	case domain.DimensionCredit:
		return CREDIT_SYSTEM
	case domain.DimensionIncome:
		return INCOME_SYSTEM
	default:
		return EXPENSE_SYSTEM
	}
}

func BuildAssessmentUserPrompt(app domain.Application, source any, verdict any) string {
	return RenderTemplate(ASSESSMENT_USER_TEMPLATE, map[string]string{
		"NAME":        app.Name,
		"AMOUNT":      formatNumber(app.Amount),
		"INCOME":      formatNumber(app.MonthlyIncome),
		"EXPENSES":    formatNumber(app.MonthlyExpenses),
		"SOURCE_DATA": indentJSON(source),
		"VERDICT":     indentJSON(verdict),
	})
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func formatNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
