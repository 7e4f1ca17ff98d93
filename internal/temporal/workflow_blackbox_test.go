package temporal

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"

	"loan-underwriting-orchestrator/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	assessIn  *AssessInput
	queueIn   *QueueReviewInput
	persistIn *domain.FinalRecord
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("LoanUnderwritingWorkflow blackbox", func() {
	It("acquires, assesses, waits for a reviewer and finalizes with the recorded outcome", func() {
		store := newFakeStore()
		p := newScriptedProviders()
		acts := newTestActivities(p, store)
		env := newWorkflowEnv(acts, "loan-bb-1")

		trace := &activityTrace{}
		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "AssessCreditActivity":
				var in AssessInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.assessIn = &in
				trace.mu.Unlock()
			case "QueueReviewActivity":
				var in QueueReviewInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.queueIn = &in
				trace.mu.Unlock()
			case "PersistDecisionActivity":
				var in domain.FinalRecord
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.persistIn = &in
				trace.mu.Unlock()
			}
		})
		env.SetOnActivityCompletedListener(func(info *activity.Info, _ converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)
		})

		app := approvableApplication("bb-1")

		By("submitting the reviewer outcome once the workflow has suspended")
		cb := &reviewCallbacks{}
		env.RegisterDelayedCallback(func() {
			env.UpdateWorkflow(UpdateSubmitReview, "review-bb-1", cb, domain.ReviewOutcome{Action: "approve", Reviewer: "ops-lead"})
		}, 2*time.Hour)

		By("starting the workflow")
		env.ExecuteWorkflow(LoanUnderwritingWorkflowName, WorkflowInput{Application: app})

		By("validating the workflow completed")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())
		Expect(cb.accepted).To(BeTrue())
		Expect(cb.resultErr).ToNot(HaveOccurred())

		var result WorkflowResult
		Expect(env.GetWorkflowResult(&result)).To(Succeed())
		Expect(result.State).To(Equal(domain.StateFinalized))
		Expect(result.Final.FinalDecision).To(Equal("approve"))

		By("validating activity phases")
		Expect(trace.startedOrder).To(HaveLen(10))
		Expect(trace.startedOrder[0]).To(Equal("RegisterApplicationActivity"))
		Expect(trace.startedOrder[1:4]).To(ConsistOf("FetchBankActivity", "FetchDocumentsActivity", "FetchCreditCIBILActivity"))
		Expect(trace.startedOrder[4:7]).To(ConsistOf("AssessCreditActivity", "AssessIncomeActivity", "AssessExpenseActivity"))
		Expect(trace.startedOrder[7:]).To(Equal([]string{"QueueReviewActivity", "PersistDecisionActivity", "ArchiveRecordActivity"}))
		Expect(trace.completedOrder).To(ConsistOf(trace.startedOrder))

		By("validating what flowed between phases")
		Expect(trace.assessIn).ToNot(BeNil())
		Expect(trace.assessIn.Application).To(Equal(app))
		Expect(trace.assessIn.Acquisition.Credit.Provider).To(Equal(domain.ProviderCIBIL))
		Expect(trace.assessIn.Acquisition.Documents.VerifiedCount()).To(Equal(2))

		Expect(trace.queueIn).ToNot(BeNil())
		Expect(trace.queueIn.WorkflowID).To(Equal("loan-bb-1"))
		Expect(trace.queueIn.Suggested.Decision).To(Equal(domain.DecisionApprove))
		Expect(trace.queueIn.Suggested.Rationale).To(ContainSubstring("credit risk low"))

		Expect(trace.persistIn).ToNot(BeNil())
		Expect(trace.persistIn.FinalDecision).To(Equal("approve"))
		Expect(trace.persistIn.Review.Reviewer).To(Equal("ops-lead"))

		By("validating persisted side effects")
		store.mu.Lock()
		decision, ok := store.decisions["loan-bb-1"]
		store.mu.Unlock()
		Expect(ok).To(BeTrue())
		Expect(decision.Suggested.Confidence).To(Equal(domain.ConfidenceHigh))
		Expect(store.auditStates("loan-bb-1")).To(Equal([]domain.State{
			domain.StateInitiated,
			domain.StateAwaitingReview,
			domain.StateFinalized,
		}))
	})

	It("aborts with the fallback error when both bureaus fail", func() {
		p := newScriptedProviders()
		p.always[cibilSource] = outage("cibil")
		p.always[experianSource] = rejected("experian")
		env := newWorkflowEnv(newTestActivities(p, newFakeStore()), "loan-bb-2")

		env.ExecuteWorkflow(LoanUnderwritingWorkflowName, WorkflowInput{Application: approvableApplication("bb-2")})

		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).To(MatchError(ContainSubstring("fallback bureau exhausted")))

		val, err := env.QueryWorkflow(QueryGetFinalResult)
		Expect(err).ToNot(HaveOccurred())
		var view domain.FinalResultView
		Expect(val.Get(&view)).To(Succeed())
		Expect(view.Ready()).To(BeFalse())
	})
})
