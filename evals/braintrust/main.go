package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	braintrust "github.com/braintrustdata/braintrust-sdk-go"
	"github.com/braintrustdata/braintrust-sdk-go/eval"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	stateAwaitingReview = "AWAITING_REVIEW"
	stateFinalized      = "FINALIZED"
	stateAborted        = "ABORTED"
)

type application struct {
	ApplicantID string  `json:"applicant_id,omitempty"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Income      float64 `json:"income"`
	Expenses    float64 `json:"expenses"`
}

type evalInput struct {
	Name         string      `json:"name"`
	Application  application `json:"application"`
	ReviewAction string      `json:"review_action,omitempty"`
}

type evalOutput struct {
	WorkflowID    string  `json:"workflow_id,omitempty"`
	State         string  `json:"state,omitempty"`
	Decision      string  `json:"decision,omitempty"`
	Confidence    string  `json:"confidence,omitempty"`
	RiskLevel     string  `json:"risk_level,omitempty"`
	Provider      string  `json:"provider,omitempty"`
	CreditScore   float64 `json:"credit_score,omitempty"`
	FinalDecision string  `json:"final_decision,omitempty"`
	AbortKind     string  `json:"abort_kind,omitempty"`
	ReviewLatency float64 `json:"review_latency_sec,omitempty"`
}

type rawCase struct {
	Input    evalInput  `json:"input"`
	Expected evalOutput `json:"expected"`
}

type config struct {
	APIURL         string
	CasesPath      string
	Project        string
	Experiment     string
	AutoReview     bool
	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	Parallelism    int
}

type evalRunner struct {
	cfg    config
	client *http.Client
}

type startResponse struct {
	WorkflowID string `json:"workflow_id"`
}

type statusResponse struct {
	WorkflowID string `json:"workflow_id"`
	State      string `json:"state"`
	Summary    struct {
		StateEnteredAt    map[string]time.Time `json:"state_entered_at"`
		SuggestedDecision *struct {
			Decision   string `json:"decision"`
			Confidence string `json:"confidence"`
			Credit     struct {
				Score     float64 `json:"credit_score"`
				RiskLevel string  `json:"risk_level"`
				Provider  string  `json:"provider"`
			} `json:"credit"`
		} `json:"suggested_decision"`
		Abort *struct {
			Kind string `json:"kind"`
		} `json:"abort"`
	} `json:"summary"`
	Final struct {
		Status string `json:"status"`
		Record *struct {
			FinalDecision string `json:"final_decision"`
		} `json:"record"`
	} `json:"final"`
}

func main() {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	if strings.TrimSpace(os.Getenv("BRAINTRUST_API_KEY")) == "" {
		fail(errors.New("BRAINTRUST_API_KEY is required"))
	}

	cases, err := loadCases(cfg.CasesPath)
	if err != nil {
		fail(err)
	}

	runner := &evalRunner{
		cfg:    cfg,
		client: &http.Client{},
	}

	if err := runner.healthCheck(ctx); err != nil {
		fail(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	bt, err := braintrust.New(
		tp,
		braintrust.WithProject(cfg.Project),
		braintrust.WithBlockingLogin(true),
	)
	if err != nil {
		fail(fmt.Errorf("failed to initialize Braintrust: %w", err))
	}

	evaluator := braintrust.NewEvaluator[evalInput, evalOutput](bt)

	result, err := evaluator.Run(ctx, eval.Opts[evalInput, evalOutput]{
		Experiment: cfg.Experiment,
		Dataset:    eval.NewDataset(cases),
		Task:       eval.T(runner.runCase),
		Scorers: []eval.Scorer[evalInput, evalOutput]{
			eval.NewScorer("state", scoreState),
			eval.NewScorer("suggested_decision", scoreDecision),
			eval.NewScorer("confidence", scoreConfidence),
			eval.NewScorer("risk_level", scoreRiskLevel),
			eval.NewScorer("credit_provider", scoreProvider),
			eval.NewScorer("final_decision", scoreFinalDecision),
		},
		Tags: []string{"loan-underwriting", "suggested-decision", "workflow-api"},
		Metadata: map[string]any{
			"service":          "loan-underwriting-orchestrator",
			"api_url":          cfg.APIURL,
			"auto_review":      cfg.AutoReview,
			"poll_timeout_sec": int(cfg.PollTimeout.Seconds()),
		},
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		fail(fmt.Errorf("eval run failed: %w", err))
	}

	if runErr := result.Error(); runErr != nil {
		fail(fmt.Errorf("eval completed with errors: %w", runErr))
	}

	if link, err := result.Permalink(); err == nil && link != "" {
		fmt.Println("Braintrust report:", link)
	}

	fmt.Println(result.String())
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:         getenv("EVAL_API_URL", "http://localhost:8080"),
		CasesPath:      getenv("EVAL_CASES_PATH", "evals/braintrust/cases.json"),
		Project:        getenv("BRAINTRUST_PROJECT", "loan-underwriting-orchestrator"),
		Experiment:     getenv("EVAL_EXPERIMENT", "underwriting-suggested-decision-eval"),
		AutoReview:     getenvBool("EVAL_AUTO_REVIEW", true),
		PollInterval:   time.Duration(getenvInt("EVAL_POLL_INTERVAL_SEC", 2)) * time.Second,
		PollTimeout:    time.Duration(getenvInt("EVAL_POLL_TIMEOUT_SEC", 180)) * time.Second,
		RequestTimeout: time.Duration(getenvInt("EVAL_REQUEST_TIMEOUT_SEC", 20)) * time.Second,
		Parallelism:    getenvInt("EVAL_PARALLELISM", 1),
	}

	if cfg.PollInterval <= 0 {
		return config{}, errors.New("EVAL_POLL_INTERVAL_SEC must be > 0")
	}
	if cfg.PollTimeout <= 0 {
		return config{}, errors.New("EVAL_POLL_TIMEOUT_SEC must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return config{}, errors.New("EVAL_REQUEST_TIMEOUT_SEC must be > 0")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	return cfg, nil
}

func loadCases(path string) ([]eval.Case[evalInput, evalOutput], error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file %s: %w", resolved, err)
	}

	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", resolved, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cases file is empty: %s", resolved)
	}

	runID := time.Now().UTC().Format("20060102150405")
	cases := make([]eval.Case[evalInput, evalOutput], 0, len(raw))
	for i, row := range raw {
		// Workflow ids are derived from applicant ids, so every run needs fresh ones.
		if row.Input.Application.ApplicantID == "" {
			row.Input.Application.ApplicantID = fmt.Sprintf("eval-%s-%02d", runID, i)
		} else {
			row.Input.Application.ApplicantID = row.Input.Application.ApplicantID + "-" + runID
		}
		cases = append(cases, eval.Case[evalInput, evalOutput]{
			Input:    row.Input,
			Expected: row.Expected,
			Metadata: map[string]any{
				"name":         row.Input.Name,
				"applicant_id": row.Input.Application.ApplicantID,
				"amount":       row.Input.Application.Amount,
			},
		})
	}
	return cases, nil
}

func (r *evalRunner) runCase(ctx context.Context, input evalInput) (evalOutput, error) {
	workflowID, err := r.startApplication(ctx, input.Application)
	if err != nil {
		return evalOutput{}, err
	}

	deadline := time.Now().Add(r.cfg.PollTimeout)
	reviewSent := false

	for {
		status, err := r.getStatus(ctx, workflowID)
		if err != nil {
			return evalOutput{}, err
		}

		switch strings.ToUpper(status.State) {
		case stateAwaitingReview:
			if !r.cfg.AutoReview {
				return toOutput(workflowID, status), nil
			}
			if !reviewSent {
				if err := r.sendReview(ctx, workflowID, input.ReviewAction); err != nil {
					return evalOutput{}, err
				}
				reviewSent = true
			}
		case stateFinalized, stateAborted:
			return toOutput(workflowID, status), nil
		}

		if time.Now().After(deadline) {
			return evalOutput{}, fmt.Errorf("timed out waiting for workflow %s (state=%s)", workflowID, status.State)
		}

		select {
		case <-ctx.Done():
			return evalOutput{}, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func toOutput(workflowID string, status statusResponse) evalOutput {
	out := evalOutput{
		WorkflowID: workflowID,
		State:      strings.ToUpper(status.State),
	}
	if s := status.Summary.SuggestedDecision; s != nil {
		out.Decision = s.Decision
		out.Confidence = s.Confidence
		out.RiskLevel = s.Credit.RiskLevel
		out.Provider = s.Credit.Provider
		out.CreditScore = s.Credit.Score
	}
	if a := status.Summary.Abort; a != nil {
		out.AbortKind = a.Kind
	}
	if rec := status.Final.Record; rec != nil {
		out.FinalDecision = rec.FinalDecision
	}
	entered := status.Summary.StateEnteredAt
	if start, ok := entered[stateAwaitingReview]; ok {
		if end, ok := entered[stateFinalized]; ok {
			out.ReviewLatency = end.Sub(start).Seconds()
		}
	}
	return out
}

func (r *evalRunner) healthCheck(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if strings.ToLower(resp.Status) != "ok" {
		return fmt.Errorf("health check returned non-ok status: %s", resp.Status)
	}
	return nil
}

func (r *evalRunner) startApplication(ctx context.Context, app application) (string, error) {
	var out startResponse
	if err := r.doJSON(ctx, http.MethodPost, "/v1/applications", app, &out); err != nil {
		return "", fmt.Errorf("start application failed: %w", err)
	}
	if out.WorkflowID == "" {
		return "", fmt.Errorf("start response missing workflow_id for applicant %s", app.ApplicantID)
	}
	return out.WorkflowID, nil
}

func (r *evalRunner) getStatus(ctx context.Context, workflowID string) (statusResponse, error) {
	var out statusResponse
	if err := r.doJSON(ctx, http.MethodGet, "/v1/applications/"+workflowID+"/status", nil, &out); err != nil {
		return statusResponse{}, err
	}
	return out, nil
}

func (r *evalRunner) sendReview(ctx context.Context, workflowID, action string) error {
	if strings.TrimSpace(action) == "" {
		action = "approve"
	}
	payload := map[string]any{
		"action":   action,
		"reviewer": "braintrust-go-eval",
		"note":     "automated review for eval progression",
	}
	return r.doJSON(ctx, http.MethodPost, "/v1/applications/"+workflowID+"/review", payload, nil)
}

func (r *evalRunner) doJSON(ctx context.Context, method, path string, in any, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, strings.TrimRight(r.cfg.APIURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode failed: %w (payload=%s)", err, string(payload))
		}
	}
	return nil
}

func scoreState(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := strings.ToUpper(strings.TrimSpace(tr.Expected.State))
	if expected == "" {
		expected = stateFinalized
	}
	return exact(expected, strings.ToUpper(tr.Output.State)), nil
}

func scoreDecision(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return optional(tr.Expected.Decision, tr.Output.Decision), nil
}

// Confidence is graded on an ordinal scale so "medium" vs "high" earns partial credit.
func scoreConfidence(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := normalizeString(tr.Expected.Confidence)
	if expected == "" {
		return eval.S(1), nil
	}
	actual := normalizeString(tr.Output.Confidence)
	if actual == expected {
		return eval.S(1), nil
	}
	if actual == "" {
		return eval.S(0), nil
	}
	return eval.S(0.5), nil
}

func scoreRiskLevel(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	ladder := []string{"low", "medium", "medium-high", "high"}
	expected := indexOf(ladder, normalizeString(tr.Expected.RiskLevel))
	if expected < 0 {
		return eval.S(1), nil
	}
	actual := indexOf(ladder, normalizeString(tr.Output.RiskLevel))
	if actual < 0 {
		return eval.S(0), nil
	}
	distance := expected - actual
	if distance < 0 {
		distance = -distance
	}
	return eval.S(1 - float64(distance)/float64(len(ladder)-1)), nil
}

func scoreProvider(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return optional(tr.Expected.Provider, tr.Output.Provider), nil
}

func scoreFinalDecision(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return optional(tr.Expected.FinalDecision, tr.Output.FinalDecision), nil
}

func exact(expected, actual string) eval.Scores {
	if normalizeString(expected) == normalizeString(actual) {
		return eval.S(1)
	}
	return eval.S(0)
}

// optional scores 1 when the case does not pin the field.
func optional(expected, actual string) eval.Scores {
	if normalizeString(expected) == "" {
		return eval.S(1)
	}
	return exact(expected, actual)
}

func indexOf(items []string, v string) int {
	for i, item := range items {
		if item == v {
			return i
		}
	}
	return -1
}

func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("path not found: %s", path)
	}

	candidates := []string{
		path,
		filepath.Join("..", "..", path),
		filepath.Base(path),
	}

	for _, c := range candidates {
		absPath, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("path not found: %s", path)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(v, "%d", &out); err != nil {
		return fallback
	}
	return out
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
