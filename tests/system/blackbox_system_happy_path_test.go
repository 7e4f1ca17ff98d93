//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"loan-underwriting-orchestrator/internal/domain"
	appTemporal "loan-underwriting-orchestrator/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var api *apiClient

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(pollUntil(cfg.PreflightTimeout, 2*time.Second, postgresReady(cfg.PostgresDSN))).To(Succeed())
		Expect(pollUntil(cfg.PreflightTimeout, 2*time.Second, temporalReady(cfg.TemporalAddress, cfg.TemporalNamespace))).To(Succeed())
		for _, url := range cfg.ReadyURLs {
			Expect(pollUntil(cfg.PreflightTimeout, time.Second, httpOK(url))).To(Succeed())
		}
		Expect(pollUntil(cfg.WorkerPollerTimeout, time.Second, workerPolling(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue))).To(Succeed())
		Expect(applyMigrations(repoRoot, cfg.PostgresDSN)).To(Succeed())

		api = newAPIClient(cfg.APIBaseURL)
	})

	It("starts an application over HTTP, suspends for review and finalizes with the reviewer's action", func() {
		app := domain.Application{
			ApplicantID:     fmt.Sprintf("sys-%d", time.Now().UnixNano()),
			Name:            "System Applicant",
			Amount:          30000,
			MonthlyIncome:   10000,
			MonthlyExpenses: 4000,
		}

		By("submitting the application exactly like a client")
		started, err := api.startApplication(app)
		Expect(err).ToNot(HaveOccurred())
		Expect(started.ApplicantID).To(Equal(app.ApplicantID))
		Expect(started.WorkflowID).To(HaveSuffix(app.ApplicantID))

		By("polling status until the review gate opens")
		var lastStatus statusResponse
		Eventually(func() domain.State {
			var statusErr error
			lastStatus, statusErr = api.status(started.WorkflowID)
			Expect(statusErr).ToNot(HaveOccurred())
			Expect(lastStatus.State).ToNot(Equal(domain.StateAborted))
			return lastStatus.State
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(domain.StateAwaitingReview))
		Expect(lastStatus.Summary.SuggestedDecision).ToNot(BeNil())
		Expect(lastStatus.Summary.Pending).To(Equal([]string{"review"}))
		Expect(lastStatus.Final.Status).To(Equal(domain.FinalResultNotReady))

		By("submitting the reviewer outcome")
		rec, err := api.submitReview(started.WorkflowID, "approve", "system-test")
		Expect(err).ToNot(HaveOccurred())
		Expect(rec.FinalDecision).To(Equal("approve"))
		Expect(rec.Review.Reviewer).To(Equal("system-test"))

		By("checking that a second review is refused")
		_, err = api.submitReview(started.WorkflowID, "reject", "late-reviewer")
		Expect(err).To(MatchError(ContainSubstring("status=409")))

		By("checking the final result")
		Eventually(func() bool {
			view, viewErr := api.final(started.WorkflowID)
			Expect(viewErr).ToNot(HaveOccurred())
			return view.Ready()
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(BeTrue())

		By("validating activity inputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		Eventually(func() []string {
			trace, traceErr := collectActivityTrace(context.Background(), temporalClient, started.WorkflowID)
			Expect(traceErr).ToNot(HaveOccurred())
			return trace.CompletedOrder
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(HaveLen(len(cfg.ExpectedActivityOrder)))

		trace, err := collectActivityTrace(context.Background(), temporalClient, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(ConsistOf(cfg.ExpectedActivityOrder))
		Expect(trace.ScheduledOrder[0]).To(Equal("RegisterApplicationActivity"))

		fetchIn := trace.Inputs["FetchCreditCIBILActivity"].(*appTemporal.FetchInput)
		Expect(fetchIn.ApplicantID).To(Equal(app.ApplicantID))

		assessIn := trace.Inputs["AssessIncomeActivity"].(*appTemporal.AssessInput)
		Expect(assessIn.Application).To(Equal(app))
		Expect(assessIn.Acquisition.Credit.Provider).To(Equal(domain.ProviderCIBIL))

		persistIn := trace.Inputs["PersistDecisionActivity"].(*domain.FinalRecord)
		Expect(persistIn.WorkflowID).To(Equal(started.WorkflowID))
		Expect(persistIn.FinalDecision).To(Equal("approve"))

		updates, err := collectWorkflowUpdateNames(context.Background(), temporalClient, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(updates).To(Equal([]string{appTemporal.UpdateSubmitReview}))

		By("verifying audit and decision records in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		Expect(db.Ping()).To(Succeed())

		auditStates, err := queryColumn(db, `SELECT state FROM audit_log WHERE workflow_id = $1 ORDER BY id`, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(auditStates).To(Equal([]string{"INITIATED", "AWAITING_REVIEW", "FINALIZED"}))

		finalDecisions, err := queryColumn(db, `SELECT final_decision FROM applications WHERE workflow_id = $1`, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(finalDecisions).To(Equal([]string{"approve"}))
	})
})
