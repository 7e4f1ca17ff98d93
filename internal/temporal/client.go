package temporal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"loan-underwriting-orchestrator/internal/domain"
	"loan-underwriting-orchestrator/internal/metrics"
)

// Client is the caller-facing surface of the orchestrator. Workflow ids are
// the handles: <prefix>-<applicant id>.
type Client struct {
	tc        client.Client
	taskQueue string
	prefix    string
	ceiling   time.Duration
}

func NewClient(tc client.Client, taskQueue, workflowIDPrefix string, ceiling time.Duration) *Client {
	return &Client{tc: tc, taskQueue: taskQueue, prefix: workflowIDPrefix, ceiling: ceiling}
}

func WorkflowID(prefix, applicantID string) string {
	if prefix == "" {
		return applicantID
	}
	return fmt.Sprintf("%s-%s", prefix, applicantID)
}

// Start launches the workflow for app. Starting an id that is already running
// returns the existing execution's id.
func (c *Client) Start(ctx context.Context, app domain.Application) (string, error) {
	if res := domain.ValidateApplication(app); !domain.ValidationPassed(res) {
		return "", fmt.Errorf("invalid application: %s", strings.Join(res.FailedRules, ", "))
	}

	id := WorkflowID(c.prefix, app.ApplicantID)
	run, err := c.tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
	}, LoanUnderwritingWorkflowName, WorkflowInput{
		Application:     app,
		ActivityCeiling: c.ceiling,
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return id, nil
		}
		return "", fmt.Errorf("start workflow %s: %w", id, err)
	}
	metrics.ApplicationsStarted.Inc()
	return run.GetID(), nil
}

func (c *Client) GetSummary(ctx context.Context, workflowID string) (domain.Summary, error) {
	var out domain.Summary
	if err := c.query(ctx, workflowID, QueryGetSummary, &out); err != nil {
		return domain.Summary{}, err
	}
	return out, nil
}

func (c *Client) GetFinalResult(ctx context.Context, workflowID string) (domain.FinalResultView, error) {
	var out domain.FinalResultView
	if err := c.query(ctx, workflowID, QueryGetFinalResult, &out); err != nil {
		return domain.FinalResultView{}, err
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, workflowID, queryType string, out any) error {
	val, err := c.tc.QueryWorkflow(ctx, workflowID, "", queryType)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("query %s on %s: %w", queryType, workflowID, err)
	}
	if err := val.Get(out); err != nil {
		return fmt.Errorf("decode %s result: %w", queryType, err)
	}
	return nil
}

// SubmitReview resolves the review gate and waits for the final record. If
// ctx expires after the gate accepted the outcome, ErrReviewPending is
// returned and the final record can be read with GetFinalResult later.
func (c *Client) SubmitReview(ctx context.Context, workflowID string, outcome domain.ReviewOutcome) (domain.FinalRecord, error) {
	if res := domain.ValidateReviewOutcome(outcome); !domain.ValidationPassed(res) {
		return domain.FinalRecord{}, domain.ErrInvalidReview
	}

	handle, err := c.tc.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   workflowID,
		UpdateName:   UpdateSubmitReview,
		Args:         []interface{}{outcome},
		WaitForStage: client.WorkflowUpdateStageAccepted,
	})
	if err != nil {
		return domain.FinalRecord{}, c.reviewError(ctx, workflowID, err)
	}
	metrics.ReviewsSubmitted.WithLabelValues(strings.ToLower(strings.TrimSpace(outcome.Action))).Inc()

	var rec domain.FinalRecord
	if err := handle.Get(ctx, &rec); err != nil {
		if ctx.Err() != nil {
			return domain.FinalRecord{}, domain.ErrReviewPending
		}
		return domain.FinalRecord{}, c.reviewError(ctx, workflowID, err)
	}
	return rec, nil
}

// SignalReview delivers the outcome as the fire-and-forget human_review
// signal. Duplicates are dropped by the workflow.
func (c *Client) SignalReview(ctx context.Context, workflowID string, sig HumanReviewSignal) error {
	if strings.TrimSpace(sig.Action) == "" {
		return domain.ErrInvalidReview
	}
	if err := c.tc.SignalWorkflow(ctx, workflowID, "", HumanReviewSignalName, sig); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("signal %s: %w", workflowID, err)
	}
	return nil
}

// reviewError maps a failed update. The server answers updates to a closed
// execution with NotFound, so the run's last state decides between a missing
// application and a gate that has already been resolved or closed.
func (c *Client) reviewError(ctx context.Context, workflowID string, err error) error {
	mapped := mapReviewError(workflowID, err)
	if !errors.Is(mapped, domain.ErrNotFound) {
		return mapped
	}
	summary, qerr := c.GetSummary(ctx, workflowID)
	if qerr != nil {
		if errors.Is(qerr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("submit review to %s: %w", workflowID, qerr)
	}
	switch summary.State {
	case domain.StateFinalized:
		return domain.ErrAlreadyResolved
	case domain.StateAborted:
		return domain.ErrReviewClosed
	}
	return mapped
}

func mapReviewError(workflowID string, err error) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return domain.ErrNotFound
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch domain.FailureKind(appErr.Type()) {
		case domain.KindAlreadyResolved:
			return domain.ErrAlreadyResolved
		case domain.KindReviewClosed:
			return domain.ErrReviewClosed
		case domain.KindInvalidReview:
			return domain.ErrInvalidReview
		}
	}
	return fmt.Errorf("submit review to %s: %w", workflowID, err)
}
