package temporal

import (
	"strings"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loan-underwriting-orchestrator/internal/domain"
)

const (
	QueryGetSummary     = "get_summary"
	QueryGetFinalResult = "get_final_result"

	UpdateSubmitReview = "submit_review"

	// HumanReviewSignalName is the fire-and-forget variant of the review gate.
	HumanReviewSignalName = "human_review"
)

type HumanReviewSignal struct {
	Action   string `json:"action"`
	Note     string `json:"note,omitempty"`
	Reviewer string `json:"reviewer,omitempty"`
}

func (s HumanReviewSignal) outcome() domain.ReviewOutcome {
	return domain.ReviewOutcome{Action: s.Action, Note: s.Note, Reviewer: s.Reviewer}
}

func (r *run) registerHandlers(ctx workflow.Context) error {
	if err := workflow.SetQueryHandler(ctx, QueryGetSummary, func() (domain.Summary, error) {
		return r.summary(), nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetFinalResult, func() (domain.FinalResultView, error) {
		return r.finalView(), nil
	}); err != nil {
		return err
	}

	if err := workflow.SetUpdateHandlerWithOptions(ctx, UpdateSubmitReview, r.handleReviewUpdate, workflow.UpdateHandlerOptions{
		Validator: r.validateReview,
	}); err != nil {
		return err
	}

	signals := workflow.GetSignalChannel(ctx, HumanReviewSignalName)
	workflow.Go(ctx, func(gctx workflow.Context) {
		for {
			var s HumanReviewSignal
			if !signals.Receive(gctx, &s) {
				return
			}
			outcome := s.outcome()
			if err := r.checkReview(outcome); err != nil {
				workflow.GetLogger(gctx).Warn("dropping human_review signal", "WorkflowID", r.workflowID, "action", s.Action, "reason", err.Error())
				continue
			}
			r.acceptReview(gctx, outcome)
		}
	})
	return nil
}

// checkReview enforces single write on the gate. A review may arrive before
// AWAITING_REVIEW; it is held until the suggestion exists.
func (r *run) checkReview(o domain.ReviewOutcome) error {
	if r.review != nil {
		return temporal.NewApplicationError(domain.ErrAlreadyResolved.Error(), string(domain.KindAlreadyResolved))
	}
	if r.state == domain.StateAborted {
		return temporal.NewApplicationError(domain.ErrReviewClosed.Error(), string(domain.KindReviewClosed))
	}
	if strings.TrimSpace(o.Action) == "" {
		return temporal.NewApplicationError(domain.ErrInvalidReview.Error(), string(domain.KindInvalidReview))
	}
	return nil
}

func (r *run) validateReview(ctx workflow.Context, o domain.ReviewOutcome) error {
	return r.checkReview(o)
}

func (r *run) acceptReview(ctx workflow.Context, o domain.ReviewOutcome) {
	if o.SubmittedAt.IsZero() {
		o.SubmittedAt = workflow.Now(ctx)
	}
	r.review = &o
}

// handleReviewUpdate records the outcome and returns once the workflow has
// finalized with it.
func (r *run) handleReviewUpdate(ctx workflow.Context, o domain.ReviewOutcome) (domain.FinalRecord, error) {
	// The validator does not run on replay, so the gate is checked again here.
	if err := r.checkReview(o); err != nil {
		return domain.FinalRecord{}, err
	}
	r.acceptReview(ctx, o)

	if err := workflow.Await(ctx, func() bool {
		return r.final != nil || r.state == domain.StateAborted
	}); err != nil {
		return domain.FinalRecord{}, err
	}
	if r.final == nil {
		return domain.FinalRecord{}, temporal.NewApplicationError(domain.ErrReviewClosed.Error(), string(domain.KindReviewClosed))
	}
	return *r.final, nil
}
