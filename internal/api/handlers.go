package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/domain"
)

// Orchestrator is the workflow-facing side of the API.
type Orchestrator interface {
	Start(ctx context.Context, app domain.Application) (string, error)
	GetSummary(ctx context.Context, workflowID string) (domain.Summary, error)
	GetFinalResult(ctx context.Context, workflowID string) (domain.FinalResultView, error)
	SubmitReview(ctx context.Context, workflowID string, outcome domain.ReviewOutcome) (domain.FinalRecord, error)
}

// ReadStore serves the list, queue and stats views from Postgres.
type ReadStore interface {
	Ping(ctx context.Context) error
	ListApplications(ctx context.Context, limit int) ([]domain.ApplicationListItem, error)
	ListPendingReviews(ctx context.Context) ([]domain.ReviewQueueItem, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

type Notifier interface {
	Notify(ctx context.Context, note domain.Notification, view domain.FinalResultView) error
}

type Handler struct {
	orchestrator Orchestrator
	store        ReadStore
	notifier     Notifier
	logger       *zap.Logger
	// reviewTimeout bounds how long a review request waits for finalization.
	reviewTimeout time.Duration
}

type startRequest struct {
	ApplicantID string  `json:"applicant_id"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Income      float64 `json:"income"`
	Expenses    float64 `json:"expenses"`
}

type reviewRequest struct {
	Action   string `json:"action"`
	Note     string `json:"note,omitempty"`
	Reviewer string `json:"reviewer,omitempty"`
}

type notifyRequest struct {
	Email         string `json:"email"`
	ApplicantName string `json:"applicant_name"`
}

type statusResponse struct {
	WorkflowID string                 `json:"workflow_id"`
	State      domain.State           `json:"state"`
	Summary    domain.Summary         `json:"summary"`
	Final      domain.FinalResultView `json:"final"`
}

func NewHandler(orchestrator Orchestrator, store ReadStore, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		orchestrator:  orchestrator,
		store:         store,
		notifier:      notifier,
		logger:        logger,
		reviewTimeout: 10 * time.Second,
	}
}

func (h *Handler) StartApplication(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	app := domain.Application{
		ApplicantID:     strings.TrimSpace(req.ApplicantID),
		Name:            strings.TrimSpace(req.Name),
		Amount:          req.Amount,
		MonthlyIncome:   req.Income,
		MonthlyExpenses: req.Expenses,
	}
	if app.ApplicantID == "" {
		app.ApplicantID = uuid.NewString()
	}
	if res := domain.ValidateApplication(app); !domain.ValidationPassed(res) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid application", "failed_rules": res.FailedRules})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	workflowID, err := h.orchestrator.Start(ctx, app)
	if err != nil {
		h.logger.Error("start workflow failed", zap.String("applicant_id", app.ApplicantID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to start workflow"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"workflow_id":  workflowID,
		"applicant_id": app.ApplicantID,
		"status":       "started",
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request, workflowID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summary, err := h.orchestrator.GetSummary(ctx, workflowID)
	if err != nil {
		h.writeQueryError(w, workflowID, err)
		return
	}
	final, err := h.orchestrator.GetFinalResult(ctx, workflowID)
	if err != nil {
		h.writeQueryError(w, workflowID, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{WorkflowID: workflowID, State: summary.State, Summary: summary, Final: final})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request, workflowID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summary, err := h.orchestrator.GetSummary(ctx, workflowID)
	if err != nil {
		h.writeQueryError(w, workflowID, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetFinal(w http.ResponseWriter, r *http.Request, workflowID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.orchestrator.GetFinalResult(ctx, workflowID)
	if err != nil {
		h.writeQueryError(w, workflowID, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request, workflowID string) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	outcome := domain.ReviewOutcome{Action: strings.TrimSpace(req.Action), Note: req.Note, Reviewer: req.Reviewer}
	if res := domain.ValidateReviewOutcome(outcome); !domain.ValidationPassed(res) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid review", "failed_rules": res.FailedRules})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.reviewTimeout)
	defer cancel()

	rec, err := h.orchestrator.SubmitReview(ctx, workflowID, outcome)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, domain.ErrReviewPending):
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": workflowID, "status": "review_accepted"})
	case errors.Is(err, domain.ErrAlreadyResolved), errors.Is(err, domain.ErrReviewClosed):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidReview):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "application not found"})
	default:
		h.logger.Error("submit review failed", zap.String("workflow_id", workflowID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to submit review"})
	}
}

func (h *Handler) Notify(w http.ResponseWriter, r *http.Request, workflowID string) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "valid email is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	view, err := h.orchestrator.GetFinalResult(ctx, workflowID)
	if err != nil {
		h.writeQueryError(w, workflowID, err)
		return
	}
	note := domain.Notification{WorkflowID: workflowID, Email: req.Email, ApplicantName: req.ApplicantName}
	if err := h.notifier.Notify(ctx, note, view); err != nil {
		h.logger.Error("notification failed", zap.String("workflow_id", workflowID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "failed to send notification"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": workflowID, "status": "sent", "email": req.Email})
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	items, err := h.store.ListApplications(ctx, limit)
	if err != nil {
		h.logger.Error("list applications failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list applications"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *Handler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.store.ListPendingReviews(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch pending reviews"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) writeQueryError(w http.ResponseWriter, workflowID string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "application not found"})
		return
	}
	h.logger.Error("workflow query failed", zap.String("workflow_id", workflowID), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to query workflow"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
