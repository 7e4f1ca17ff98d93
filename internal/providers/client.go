package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loan-underwriting-orchestrator/internal/domain"
	"loan-underwriting-orchestrator/internal/metrics"
)

const tracerName = "loan-underwriting/providers"

const (
	SourceBank      = "bank"
	SourceDocuments = "documents"
)

// Client fetches the raw applicant data the orchestrator acquires.
type Client interface {
	FetchBank(ctx context.Context, applicantID string) (domain.BankRecord, error)
	FetchDocuments(ctx context.Context, applicantID string) (domain.DocumentRecord, error)
	FetchCredit(ctx context.Context, bureau domain.Provider, applicantID string) (domain.CreditRecord, error)
}

type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

func (c *HTTPClient) FetchBank(ctx context.Context, applicantID string) (domain.BankRecord, error) {
	var rec domain.BankRecord
	if err := c.get(ctx, SourceBank, applicantID, bankSchema, &rec); err != nil {
		return domain.BankRecord{}, err
	}
	if rec.ApplicantID == "" {
		rec.ApplicantID = applicantID
	}
	return rec, nil
}

func (c *HTTPClient) FetchDocuments(ctx context.Context, applicantID string) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	if err := c.get(ctx, SourceDocuments, applicantID, documentsSchema, &rec); err != nil {
		return domain.DocumentRecord{}, err
	}
	if rec.ApplicantID == "" {
		rec.ApplicantID = applicantID
	}
	return rec, nil
}

// FetchCredit queries one bureau and stamps the record with its provider tag.
// A score outside the accepted range is reported as bad data.
func (c *HTTPClient) FetchCredit(ctx context.Context, bureau domain.Provider, applicantID string) (domain.CreditRecord, error) {
	source := bureauPath(bureau)
	if source == "" {
		return domain.CreditRecord{}, fmt.Errorf("unknown credit bureau %q", bureau)
	}
	var rec domain.CreditRecord
	if err := c.get(ctx, source, applicantID, creditSchema, &rec); err != nil {
		return domain.CreditRecord{}, err
	}
	if err := domain.ValidateCreditScore(rec.Score); err != nil {
		return domain.CreditRecord{}, newError(CategoryBadData, string(bureau), http.StatusOK, "invalid credit score", err)
	}
	if rec.ApplicantID == "" {
		rec.ApplicantID = applicantID
	}
	rec.Provider = bureau
	rec.DataQuality = domain.DataQualityValidated
	return rec, nil
}

func bureauPath(bureau domain.Provider) string {
	switch bureau {
	case domain.ProviderCIBIL:
		return "cibil"
	case domain.ProviderExperian:
		return "experian"
	default:
		return ""
	}
}

func (c *HTTPClient) get(ctx context.Context, source, applicantID string, schema gojsonschema.JSONLoader, out any) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.source", source),
			attribute.String("applicant.id", applicantID),
		),
	)
	started := time.Now()
	status := "error"
	defer func() {
		metrics.ObserveProvider(source, status, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, source, url.Values{"applicant_id": {applicantID}}.Encode())
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", source, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
			return newError(CategoryTimeout, source, 0, "request timed out", err)
		}
		return newError(CategoryOutage, source, 0, "request failed", err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(CategoryOutage, source, resp.StatusCode, "read body", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return newError(CategoryRateLimited, source, resp.StatusCode, "rate limited", nil)
	case resp.StatusCode >= 500:
		return newError(CategoryOutage, source, resp.StatusCode, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return newError(CategoryRejected, source, resp.StatusCode, fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(body, 200)), nil)
	}

	if err := validatePayload(schema, body); err != nil {
		return newError(CategoryBadData, source, resp.StatusCode, "schema validation", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newError(CategoryBadData, source, resp.StatusCode, "decode payload", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
