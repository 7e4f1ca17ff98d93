package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loan-underwriting-orchestrator/internal/domain"
)

const LoanUnderwritingWorkflowName = "LoanUnderwritingWorkflow"

// acts is only used to name activity methods; it is never dereferenced.
var acts *Activities

type WorkflowInput struct {
	Application domain.Application
	// ActivityCeiling overrides DefaultActivityCeiling when positive.
	ActivityCeiling time.Duration
}

type WorkflowResult struct {
	WorkflowID string
	State      domain.State
	Final      *domain.FinalRecord
}

// run is the workflow record. It is owned by one execution and only touched
// from workflow coroutines.
type run struct {
	workflowID string
	ceiling    time.Duration
	app        domain.Application

	state          domain.State
	stateEnteredAt map[domain.State]time.Time

	acquisition *domain.AcquisitionBundle
	assessment  *domain.AssessmentBundle
	suggested   *domain.SuggestedDecision
	review      *domain.ReviewOutcome
	final       *domain.FinalRecord
	abort       *domain.AbortInfo
}

func LoanUnderwritingWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	r := &run{
		workflowID:     workflow.GetInfo(ctx).WorkflowExecution.ID,
		ceiling:        input.ActivityCeiling,
		app:            input.Application,
		state:          domain.StateInitiated,
		stateEnteredAt: map[domain.State]time.Time{domain.StateInitiated: workflow.Now(ctx)},
	}
	if r.ceiling <= 0 {
		r.ceiling = DefaultActivityCeiling
	}
	logger := workflow.GetLogger(ctx)

	if err := r.registerHandlers(ctx); err != nil {
		return WorkflowResult{}, err
	}

	r.bookkeep(ctx, acts.RegisterApplicationActivity, RegisterApplicationInput{
		WorkflowID:  r.workflowID,
		Application: r.app,
	})

	if err := r.acquire(ctx); err != nil {
		return r.finish(ctx, err)
	}
	if err := r.assess(ctx); err != nil {
		return r.finish(ctx, err)
	}

	if err := r.transition(ctx, domain.StateAggregating); err != nil {
		return r.finish(ctx, err)
	}
	suggested := domain.Aggregate(*r.assessment)
	r.suggested = &suggested

	if err := r.transition(ctx, domain.StateAwaitingReview); err != nil {
		return r.finish(ctx, err)
	}
	logger.Info("awaiting human review", "WorkflowID", r.workflowID, "decision", suggested.Decision, "confidence", suggested.Confidence)
	r.bookkeep(ctx, acts.QueueReviewActivity, QueueReviewInput{
		WorkflowID:  r.workflowID,
		Application: r.app,
		Suggested:   suggested,
	})

	if err := workflow.Await(ctx, func() bool { return r.review != nil }); err != nil {
		return r.finish(ctx, err)
	}

	final := domain.Finalize(r.workflowID, r.app, suggested, *r.review, workflow.Now(ctx))
	r.final = &final
	if err := r.transition(ctx, domain.StateFinalized); err != nil {
		return r.finish(ctx, err)
	}
	logger.Info("application finalized", "WorkflowID", r.workflowID, "final_decision", final.FinalDecision, "manual_override", final.ManualOverride)

	r.bookkeep(ctx, acts.PersistDecisionActivity, final)
	r.bookkeep(ctx, acts.ArchiveRecordActivity, ArchiveRecordInput{
		WorkflowID: r.workflowID,
		State:      domain.StateFinalized,
		Summary:    r.summary(),
		Final:      &final,
	})

	return r.finish(ctx, nil)
}

// acquire fans out bank, documents and the primary bureau, then falls back
// to the secondary bureau if only the credit member failed.
func (r *run) acquire(ctx workflow.Context) error {
	if err := r.transition(ctx, domain.StateAcquiring); err != nil {
		return err
	}
	in := FetchInput{ApplicantID: r.app.ApplicantID}

	var bank domain.BankRecord
	var docs domain.DocumentRecord
	var credit domain.CreditRecord

	b := &barrier{}
	b.add("bank", workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyFetchBank, r.ceiling), acts.FetchBankActivity, in), &bank)
	b.add("documents", workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyFetchDocuments, r.ceiling), acts.FetchDocumentsActivity, in), &docs)
	b.add("credit", workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyFetchCreditMain, r.ceiling), acts.FetchCreditCIBILActivity, in), &credit)
	failures := b.wait(ctx)

	for _, member := range []string{"bank", "documents"} {
		if err := failure(failures, member); err != nil {
			return r.abortWith(ctx, domain.KindBarrierAbort, fmt.Sprintf("%s acquisition exhausted: %s", member, causeMessage(err)))
		}
	}

	if err := failure(failures, "credit"); err != nil {
		workflow.GetLogger(ctx).Warn("primary bureau exhausted, falling back",
			"WorkflowID", r.workflowID, "kind", failureKind(err), "error", causeMessage(err))
		if err := r.transition(ctx, domain.StateAcquiringFallback); err != nil {
			return err
		}
		credit = domain.CreditRecord{}
		ferr := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyFetchCreditAlt, r.ceiling), acts.FetchCreditExperianActivity, in).Get(ctx, &credit)
		if ferr != nil {
			return r.abortWith(ctx, domain.KindFallbackExhausted, fmt.Sprintf("fallback bureau exhausted (%s): %s", failureKind(ferr), causeMessage(ferr)))
		}
	}

	r.acquisition = &domain.AcquisitionBundle{Bank: bank, Documents: docs, Credit: credit}
	return nil
}

func (r *run) assess(ctx workflow.Context) error {
	if err := r.transition(ctx, domain.StateAssessing); err != nil {
		return err
	}
	actx := mustActivityContext(ctx, ActivityPolicyAssess, r.ceiling)
	in := AssessInput{Application: r.app, Acquisition: *r.acquisition}

	var credit domain.CreditJudgement
	var income domain.IncomeJudgement
	var expense domain.ExpenseJudgement

	b := &barrier{}
	b.add("credit", workflow.ExecuteActivity(actx, acts.AssessCreditActivity, in), &credit)
	b.add("income", workflow.ExecuteActivity(actx, acts.AssessIncomeActivity, in), &income)
	b.add("expense", workflow.ExecuteActivity(actx, acts.AssessExpenseActivity, in), &expense)

	if failures := b.wait(ctx); len(failures) > 0 {
		first := failures[0]
		return r.abortWith(ctx, domain.KindBarrierAbort, fmt.Sprintf("%s assessment exhausted (%s): %s",
			first.name, failureKind(first.err), causeMessage(first.err)))
	}

	r.assessment = &domain.AssessmentBundle{Credit: credit, Income: income, Expense: expense}
	return nil
}

func (r *run) transition(ctx workflow.Context, to domain.State) error {
	if !domain.CanTransition(r.state, to) {
		terr := &domain.TransitionError{From: r.state, To: to}
		return temporal.NewNonRetryableApplicationError(terr.Error(), string(domain.KindIllegalTransition), terr)
	}
	r.state = to
	r.stateEnteredAt[to] = workflow.Now(ctx)
	return nil
}

// abortWith moves the record to ABORTED and returns the error the workflow
// ends with.
func (r *run) abortWith(ctx workflow.Context, kind domain.FailureKind, cause string) error {
	stage := r.state
	if err := r.transition(ctx, domain.StateAborted); err != nil {
		return err
	}
	r.abort = &domain.AbortInfo{Stage: stage, Kind: kind, Cause: cause, At: workflow.Now(ctx)}
	workflow.GetLogger(ctx).Error("application aborted", "WorkflowID", r.workflowID, "stage", stage, "kind", kind, "cause", cause)

	r.bookkeep(ctx, acts.RecordAbortActivity, RecordAbortInput{WorkflowID: r.workflowID, Abort: *r.abort})
	r.bookkeep(ctx, acts.ArchiveRecordActivity, ArchiveRecordInput{
		WorkflowID: r.workflowID,
		State:      domain.StateAborted,
		Summary:    r.summary(),
	})
	return temporal.NewNonRetryableApplicationError(cause, string(kind), nil)
}

// bookkeep runs a persistence side effect. Failures are logged and never
// change the outcome of the application.
func (r *run) bookkeep(ctx workflow.Context, activityFn any, arg any) {
	actx := mustActivityContext(ctx, ActivityPolicyBookkeeping, r.ceiling)
	if err := workflow.ExecuteActivity(actx, activityFn, arg).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("bookkeeping activity failed", "WorkflowID", r.workflowID, "state", r.state, "error", err)
	}
}

// finish lets in-flight update handlers return before the run closes.
func (r *run) finish(ctx workflow.Context, err error) (WorkflowResult, error) {
	_ = workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) })
	if err != nil {
		return WorkflowResult{WorkflowID: r.workflowID, State: r.state}, err
	}
	return WorkflowResult{WorkflowID: r.workflowID, State: r.state, Final: r.final}, nil
}

func (r *run) summary() domain.Summary {
	s := domain.Summary{
		WorkflowID:        r.workflowID,
		State:             r.state,
		Application:       r.app,
		Acquisition:       r.acquisition,
		Assessment:        r.assessment,
		SuggestedDecision: r.suggested,
		Abort:             r.abort,
		StateEnteredAt:    make(map[domain.State]time.Time, len(r.stateEnteredAt)),
	}
	for k, v := range r.stateEnteredAt {
		s.StateEnteredAt[k] = v
	}
	if r.acquisition == nil {
		s.Pending = append(s.Pending, "acquisition")
	}
	if r.assessment == nil {
		s.Pending = append(s.Pending, "assessment")
	}
	if r.suggested == nil {
		s.Pending = append(s.Pending, "suggested_decision")
	}
	// A review buffered before the gate opens stays hidden until the
	// suggestion it answers is published.
	if r.review != nil && (r.state == domain.StateAwaitingReview || r.state == domain.StateFinalized) {
		s.Review = r.review
	} else {
		s.Pending = append(s.Pending, "review")
	}
	return s
}

func (r *run) finalView() domain.FinalResultView {
	if r.state != domain.StateFinalized || r.final == nil {
		return domain.FinalResultView{Status: domain.FinalResultNotReady}
	}
	rec := *r.final
	return domain.FinalResultView{Status: domain.FinalResultFinalized, Record: &rec}
}
