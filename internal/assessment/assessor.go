package assessment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/domain"
)

// Narrator produces the free-text rationale for a computed verdict.
type Narrator interface {
	Narrate(ctx context.Context, dim domain.Dimension, app domain.Application, source any, verdict any) (string, error)
}

// Judgement is the output of one dimension. Exactly one pointer is set,
// matching Dimension.
type Judgement struct {
	Dimension domain.Dimension
	Credit    *domain.CreditJudgement
	Income    *domain.IncomeJudgement
	Expense   *domain.ExpenseJudgement
}

// Assessor evaluates one dimension of an application. Verdicts come from the
// pure rule functions in domain; the narrator only adds prose.
type Assessor struct {
	narrator Narrator
	logger   *zap.Logger
}

func New(narrator Narrator, logger *zap.Logger) *Assessor {
	if narrator == nil {
		narrator = StaticNarrator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assessor{narrator: narrator, logger: logger}
}

func (a *Assessor) Assess(ctx context.Context, dim domain.Dimension, app domain.Application, acq domain.AcquisitionBundle) (Judgement, error) {
	switch dim {
	case domain.DimensionCredit:
		if err := domain.ValidateCreditScore(acq.Credit.Score); err != nil {
			return Judgement{}, fmt.Errorf("credit assessment: %w", err)
		}
		j := domain.EvaluateCredit(acq.Credit)
		j.Rationale = a.rationale(ctx, dim, app, acq.Credit, j)
		return Judgement{Dimension: dim, Credit: &j}, nil
	case domain.DimensionIncome:
		j := domain.EvaluateIncome(app)
		j.Rationale = a.rationale(ctx, dim, app, acq.Bank, j)
		return Judgement{Dimension: dim, Income: &j}, nil
	case domain.DimensionExpense:
		j := domain.EvaluateExpense(app)
		j.Rationale = a.rationale(ctx, dim, app, acq.Bank, j)
		return Judgement{Dimension: dim, Expense: &j}, nil
	default:
		return Judgement{}, fmt.Errorf("unknown assessment dimension %q", dim)
	}
}

// rationale never fails the assessment: a narrator error degrades to the
// static text.
func (a *Assessor) rationale(ctx context.Context, dim domain.Dimension, app domain.Application, source any, verdict any) string {
	text, err := a.narrator.Narrate(ctx, dim, app, source, verdict)
	if err == nil && text != "" {
		return text
	}
	if err != nil {
		a.logger.Warn("rationale narrator failed, using static text",
			zap.String("dimension", string(dim)),
			zap.String("applicant_id", app.ApplicantID),
			zap.Error(err),
		)
	}
	text, _ = StaticNarrator{}.Narrate(ctx, dim, app, source, verdict)
	return text
}
