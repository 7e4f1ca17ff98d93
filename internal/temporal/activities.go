package temporal

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"loan-underwriting-orchestrator/internal/assessment"
	"loan-underwriting-orchestrator/internal/domain"
	"loan-underwriting-orchestrator/internal/metrics"
	"loan-underwriting-orchestrator/internal/providers"
	"loan-underwriting-orchestrator/internal/storage"
)

type ApplicationStore interface {
	RegisterApplication(ctx context.Context, workflowID string, app domain.Application) error
	QueueReview(ctx context.Context, workflowID string, app domain.Application, suggested domain.SuggestedDecision) error
	SaveFinalDecision(ctx context.Context, rec domain.FinalRecord) error
	MarkAborted(ctx context.Context, workflowID string, info domain.AbortInfo) error
	InsertAudit(ctx context.Context, workflowID string, state domain.State, detail any) error
}

type ArchiveStore interface {
	PutJSON(ctx context.Context, objectKey string, v any) error
}

type ProviderCache interface {
	Get(ctx context.Context, source, applicantID string, out any) (bool, error)
	Put(ctx context.Context, source, applicantID string, v any) error
}

type Assessor interface {
	Assess(ctx context.Context, dim domain.Dimension, app domain.Application, acq domain.AcquisitionBundle) (assessment.Judgement, error)
}

// Activities holds the collaborators injected by the worker. Cache and
// Archive are optional.
type Activities struct {
	Providers providers.Client
	Cache     ProviderCache
	Assessor  Assessor
	Store     ApplicationStore
	Archive   ArchiveStore
}

type FetchInput struct {
	ApplicantID string
}

type AssessInput struct {
	Application domain.Application
	Acquisition domain.AcquisitionBundle
}

type RegisterApplicationInput struct {
	WorkflowID  string
	Application domain.Application
}

type QueueReviewInput struct {
	WorkflowID  string
	Application domain.Application
	Suggested   domain.SuggestedDecision
}

type RecordAbortInput struct {
	WorkflowID string
	Abort      domain.AbortInfo
}

type ArchiveRecordInput struct {
	WorkflowID string
	State      domain.State
	Summary    domain.Summary
	Final      *domain.FinalRecord
}

func (a *Activities) FetchBankActivity(ctx context.Context, input FetchInput) (domain.BankRecord, error) {
	var rec domain.BankRecord
	err := a.fetchCached(ctx, "FetchBankActivity", providers.SourceBank, input.ApplicantID, &rec, func() error {
		var err error
		rec, err = a.Providers.FetchBank(ctx, input.ApplicantID)
		return err
	})
	return rec, err
}

func (a *Activities) FetchDocumentsActivity(ctx context.Context, input FetchInput) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	err := a.fetchCached(ctx, "FetchDocumentsActivity", providers.SourceDocuments, input.ApplicantID, &rec, func() error {
		var err error
		rec, err = a.Providers.FetchDocuments(ctx, input.ApplicantID)
		return err
	})
	return rec, err
}

func (a *Activities) FetchCreditCIBILActivity(ctx context.Context, input FetchInput) (domain.CreditRecord, error) {
	return a.fetchCredit(ctx, "FetchCreditCIBILActivity", domain.ProviderCIBIL, input.ApplicantID)
}

func (a *Activities) FetchCreditExperianActivity(ctx context.Context, input FetchInput) (domain.CreditRecord, error) {
	return a.fetchCredit(ctx, "FetchCreditExperianActivity", domain.ProviderExperian, input.ApplicantID)
}

func (a *Activities) fetchCredit(ctx context.Context, name string, bureau domain.Provider, applicantID string) (domain.CreditRecord, error) {
	var rec domain.CreditRecord
	err := a.fetchCached(ctx, name, strings.ToLower(string(bureau)), applicantID, &rec, func() error {
		var err error
		rec, err = a.Providers.FetchCredit(ctx, bureau, applicantID)
		return err
	})
	if err != nil {
		return domain.CreditRecord{}, err
	}
	// A cached record passes through the same range check as a fresh one.
	if verr := domain.ValidateCreditScore(rec.Score); verr != nil {
		return domain.CreditRecord{}, applicationError(domain.KindDataValidation, verr.Error(), verr)
	}
	return rec, nil
}

// fetchCached serves a previous successful result when one is cached, so a
// re-dispatched attempt does not call the provider again.
func (a *Activities) fetchCached(ctx context.Context, name, source, applicantID string, out any, fetch func() error) error {
	logger := activity.GetLogger(ctx)

	if a.Cache != nil {
		found, err := a.Cache.Get(ctx, source, applicantID, out)
		if err != nil {
			logger.Warn("provider cache read failed", "source", source, "error", err)
		}
		if found {
			metrics.ProviderCacheHits.WithLabelValues(source).Inc()
			metrics.ActivityOutcome(name, nil, "")
			return nil
		}
	}

	if err := fetch(); err != nil {
		kind := providers.KindOf(err)
		metrics.ActivityOutcome(name, err, string(kind))
		logger.Warn("provider fetch failed", "source", source, "kind", kind, "attempt", activity.GetInfo(ctx).Attempt, "error", err)
		return applicationError(kind, fmt.Sprintf("%s fetch failed: %v", source, err), err)
	}

	if a.Cache != nil {
		if err := a.Cache.Put(ctx, source, applicantID, out); err != nil {
			logger.Warn("provider cache write failed", "source", source, "error", err)
		}
	}
	metrics.ActivityOutcome(name, nil, "")
	return nil
}

func (a *Activities) AssessCreditActivity(ctx context.Context, input AssessInput) (domain.CreditJudgement, error) {
	j, err := a.assess(ctx, "AssessCreditActivity", domain.DimensionCredit, input)
	if err != nil {
		return domain.CreditJudgement{}, err
	}
	return *j.Credit, nil
}

func (a *Activities) AssessIncomeActivity(ctx context.Context, input AssessInput) (domain.IncomeJudgement, error) {
	j, err := a.assess(ctx, "AssessIncomeActivity", domain.DimensionIncome, input)
	if err != nil {
		return domain.IncomeJudgement{}, err
	}
	return *j.Income, nil
}

func (a *Activities) AssessExpenseActivity(ctx context.Context, input AssessInput) (domain.ExpenseJudgement, error) {
	j, err := a.assess(ctx, "AssessExpenseActivity", domain.DimensionExpense, input)
	if err != nil {
		return domain.ExpenseJudgement{}, err
	}
	return *j.Expense, nil
}

func (a *Activities) assess(ctx context.Context, name string, dim domain.Dimension, input AssessInput) (assessment.Judgement, error) {
	j, err := a.Assessor.Assess(ctx, dim, input.Application, input.Acquisition)
	if err == nil && j.Credit == nil && j.Income == nil && j.Expense == nil {
		err = fmt.Errorf("%s assessor returned no judgement", dim)
	}
	if err != nil {
		metrics.ActivityOutcome(name, err, string(domain.KindAssessment))
		return assessment.Judgement{}, applicationError(domain.KindAssessment, err.Error(), err)
	}
	metrics.ActivityOutcome(name, nil, "")
	return j, nil
}

func (a *Activities) RegisterApplicationActivity(ctx context.Context, input RegisterApplicationInput) error {
	if err := a.Store.RegisterApplication(ctx, input.WorkflowID, input.Application); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.WorkflowID, domain.StateInitiated, input.Application)
}

func (a *Activities) QueueReviewActivity(ctx context.Context, input QueueReviewInput) error {
	if err := a.Store.QueueReview(ctx, input.WorkflowID, input.Application, input.Suggested); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.WorkflowID, domain.StateAwaitingReview, map[string]any{
		"decision":   input.Suggested.Decision,
		"confidence": input.Suggested.Confidence,
	})
}

func (a *Activities) PersistDecisionActivity(ctx context.Context, rec domain.FinalRecord) error {
	if err := a.Store.SaveFinalDecision(ctx, rec); err != nil {
		return err
	}
	if err := a.Store.InsertAudit(ctx, rec.WorkflowID, domain.StateFinalized, map[string]any{
		"final_decision":  rec.FinalDecision,
		"manual_override": rec.ManualOverride,
		"reviewer":        rec.Review.Reviewer,
	}); err != nil {
		return err
	}
	metrics.Terminal.WithLabelValues(string(domain.StateFinalized), rec.FinalDecision).Inc()
	return nil
}

func (a *Activities) RecordAbortActivity(ctx context.Context, input RecordAbortInput) error {
	if err := a.Store.MarkAborted(ctx, input.WorkflowID, input.Abort); err != nil {
		return err
	}
	if err := a.Store.InsertAudit(ctx, input.WorkflowID, domain.StateAborted, input.Abort); err != nil {
		return err
	}
	metrics.Terminal.WithLabelValues(string(domain.StateAborted), string(input.Abort.Kind)).Inc()
	return nil
}

func (a *Activities) ArchiveRecordActivity(ctx context.Context, input ArchiveRecordInput) error {
	if a.Archive == nil {
		activity.GetLogger(ctx).Debug("no archive configured, skipping", "WorkflowID", input.WorkflowID)
		return nil
	}
	var body any = input.Summary
	if input.Final != nil {
		body = struct {
			Summary domain.Summary     `json:"summary"`
			Final   domain.FinalRecord `json:"final"`
		}{input.Summary, *input.Final}
	}
	return a.Archive.PutJSON(ctx, storage.ArchiveKey(input.WorkflowID, strings.ToLower(string(input.State))), body)
}
