package temporal

import (
	"context"
	"strings"
	"sync"
	"time"

	"loan-underwriting-orchestrator/internal/assessment"
	"loan-underwriting-orchestrator/internal/domain"
	"loan-underwriting-orchestrator/internal/providers"
)

type fakeStore struct {
	mu        sync.Mutex
	apps      map[string]domain.Application
	reviews   map[string]domain.SuggestedDecision
	decisions map[string]domain.FinalRecord
	aborts    map[string]domain.AbortInfo
	audit     map[string][]domain.State
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:      make(map[string]domain.Application),
		reviews:   make(map[string]domain.SuggestedDecision),
		decisions: make(map[string]domain.FinalRecord),
		aborts:    make(map[string]domain.AbortInfo),
		audit:     make(map[string][]domain.State),
	}
}

func (f *fakeStore) RegisterApplication(_ context.Context, workflowID string, app domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[workflowID] = app
	return nil
}

func (f *fakeStore) QueueReview(_ context.Context, workflowID string, _ domain.Application, suggested domain.SuggestedDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[workflowID] = suggested
	return nil
}

func (f *fakeStore) SaveFinalDecision(_ context.Context, rec domain.FinalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[rec.WorkflowID] = rec
	return nil
}

func (f *fakeStore) MarkAborted(_ context.Context, workflowID string, info domain.AbortInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts[workflowID] = info
	return nil
}

func (f *fakeStore) InsertAudit(_ context.Context, workflowID string, state domain.State, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit[workflowID] = append(f.audit[workflowID], state)
	return nil
}

func (f *fakeStore) auditStates(workflowID string) []domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.State(nil), f.audit[workflowID]...)
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchive) PutJSON(_ context.Context, objectKey string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, objectKey)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]any)}
}

func (c *memoryCache) Get(_ context.Context, source, applicantID string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[source+":"+applicantID]
	if !ok {
		return false, nil
	}
	switch dst := out.(type) {
	case *domain.BankRecord:
		*dst = v.(domain.BankRecord)
	case *domain.DocumentRecord:
		*dst = v.(domain.DocumentRecord)
	case *domain.CreditRecord:
		*dst = v.(domain.CreditRecord)
	default:
		return false, nil
	}
	return true, nil
}

func (c *memoryCache) Put(_ context.Context, source, applicantID string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch rec := v.(type) {
	case *domain.BankRecord:
		c.entries[source+":"+applicantID] = *rec
	case *domain.DocumentRecord:
		c.entries[source+":"+applicantID] = *rec
	case *domain.CreditRecord:
		c.entries[source+":"+applicantID] = *rec
	}
	return nil
}

// scriptedProviders serves fixed records. failures[source] is consumed one
// entry per call; a nil entry or an exhausted script means success. always
// makes every call to a source fail.
type scriptedProviders struct {
	mu       sync.Mutex
	score    map[domain.Provider]float64
	failures map[string][]error
	always   map[string]error
	calls    map[string]int
}

func newScriptedProviders() *scriptedProviders {
	return &scriptedProviders{
		score: map[domain.Provider]float64{
			domain.ProviderCIBIL:    780,
			domain.ProviderExperian: 760,
		},
		failures: make(map[string][]error),
		always:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (p *scriptedProviders) next(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[source]++
	if err, ok := p.always[source]; ok {
		return err
	}
	script := p.failures[source]
	if len(script) == 0 {
		return nil
	}
	p.failures[source] = script[1:]
	return script[0]
}

func (p *scriptedProviders) callCount(source string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[source]
}

func (p *scriptedProviders) FetchBank(_ context.Context, applicantID string) (domain.BankRecord, error) {
	if err := p.next(providers.SourceBank); err != nil {
		return domain.BankRecord{}, err
	}
	return domain.BankRecord{ApplicantID: applicantID, AccountID: "acc-" + applicantID, Balance: 25000, AvgMonthlyInflow: 10000, AvgMonthlyOutflow: 4000}, nil
}

func (p *scriptedProviders) FetchDocuments(_ context.Context, applicantID string) (domain.DocumentRecord, error) {
	if err := p.next(providers.SourceDocuments); err != nil {
		return domain.DocumentRecord{}, err
	}
	return domain.DocumentRecord{ApplicantID: applicantID, Documents: []domain.Document{
		{Type: "id_proof", Status: "verified"},
		{Type: "payslip", Status: "verified"},
	}}, nil
}

func (p *scriptedProviders) FetchCredit(_ context.Context, bureau domain.Provider, applicantID string) (domain.CreditRecord, error) {
	if err := p.next(strings.ToLower(string(bureau))); err != nil {
		return domain.CreditRecord{}, err
	}
	p.mu.Lock()
	score := p.score[bureau]
	p.mu.Unlock()
	return domain.CreditRecord{
		ApplicantID: applicantID,
		Score:       score,
		Provider:    bureau,
		DataQuality: domain.DataQualityValidated,
	}, nil
}

func outage(provider string) error {
	return &providers.Error{Category: providers.CategoryOutage, Provider: provider, StatusCode: 503, Message: "service unavailable", Retryable: true}
}

func rejected(provider string) error {
	return &providers.Error{Category: providers.CategoryRejected, Provider: provider, StatusCode: 404, Message: "applicant unknown"}
}

type failingAssessor struct {
	dim domain.Dimension
	err error
	*assessment.Assessor
}

func (f *failingAssessor) Assess(ctx context.Context, dim domain.Dimension, app domain.Application, acq domain.AcquisitionBundle) (assessment.Judgement, error) {
	if dim == f.dim {
		return assessment.Judgement{}, f.err
	}
	return f.Assessor.Assess(ctx, dim, app, acq)
}

var suggestedTime = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

const (
	cibilSource    = "cibil"
	experianSource = "experian"
)

func approvableApplication(applicantID string) domain.Application {
	return domain.Application{
		ApplicantID:     applicantID,
		Name:            "Asha Rao",
		Amount:          30000,
		MonthlyIncome:   10000,
		MonthlyExpenses: 4000,
	}
}

func newTestActivities(p *scriptedProviders, store *fakeStore) *Activities {
	return &Activities{
		Providers: p,
		Cache:     newMemoryCache(),
		Assessor:  assessment.New(nil, nil),
		Store:     store,
		Archive:   &fakeArchive{},
	}
}
