package domain

import "time"

type Application struct {
	ApplicantID     string  `json:"applicant_id"`
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	MonthlyIncome   float64 `json:"income"`
	MonthlyExpenses float64 `json:"expenses"`
}

type BankRecord struct {
	ApplicantID         string  `json:"applicant_id"`
	AccountID           string  `json:"account_id"`
	Balance             float64 `json:"balance"`
	AvgMonthlyInflow    float64 `json:"avg_monthly_inflow"`
	AvgMonthlyOutflow   float64 `json:"avg_monthly_outflow"`
	OverdraftsLast12Mth int     `json:"overdrafts_last_12m"`
}

type Document struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type DocumentRecord struct {
	ApplicantID string     `json:"applicant_id"`
	Documents   []Document `json:"documents"`
}

// VerifiedCount returns how many documents the provider marked as verified.
func (d DocumentRecord) VerifiedCount() int {
	n := 0
	for _, doc := range d.Documents {
		if doc.Status == "verified" {
			n++
		}
	}
	return n
}

// CreditRecord is the shared schema of both bureaus. Score is always within
// [MinCreditScore, MaxCreditScore] once a record leaves the fetch activity.
type CreditRecord struct {
	ApplicantID    string   `json:"applicant_id"`
	Score          float64  `json:"score"`
	Provider       Provider `json:"provider"`
	DataQuality    string   `json:"data_quality"`
	ActiveAccounts int      `json:"active_accounts"`
	Delinquencies  int      `json:"delinquencies"`
}

type AcquisitionBundle struct {
	Bank      BankRecord     `json:"bank"`
	Documents DocumentRecord `json:"documents"`
	Credit    CreditRecord   `json:"credit"`
}

type CreditJudgement struct {
	Score     float64   `json:"credit_score"`
	RiskLevel RiskLevel `json:"risk_level"`
	Provider  Provider  `json:"provider"`
	Rationale string    `json:"assessment"`
}

type IncomeJudgement struct {
	MonthlyIncome   float64 `json:"income"`
	LoanAmount      float64 `json:"loan_amount"`
	AnnualIncome    float64 `json:"annual_income"`
	Ratio           float64 `json:"income_to_loan_ratio"`
	AffordabilityOK bool    `json:"affordability_ok"`
	Rationale       string  `json:"assessment"`
}

type ExpenseJudgement struct {
	MonthlyIncome    float64 `json:"monthly_income"`
	MonthlyExpenses  float64 `json:"monthly_expenses"`
	DisposableIncome float64 `json:"disposable_income"`
	AffordabilityOK  bool    `json:"affordability_ok"`
	Rationale        string  `json:"assessment"`
}

type AssessmentBundle struct {
	Credit  CreditJudgement  `json:"credit"`
	Income  IncomeJudgement  `json:"income"`
	Expense ExpenseJudgement `json:"expense"`
}

type SuggestedDecision struct {
	Decision   Decision         `json:"decision"`
	Confidence Confidence       `json:"confidence"`
	Rationale  string           `json:"reasoning"`
	Credit     CreditJudgement  `json:"credit"`
	Income     IncomeJudgement  `json:"income"`
	Expense    ExpenseJudgement `json:"expense"`
}

type ReviewOutcome struct {
	Action      string    `json:"action"`
	Note        string    `json:"note,omitempty"`
	Reviewer    string    `json:"reviewer,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type AbortInfo struct {
	Stage State       `json:"stage"`
	Kind  FailureKind `json:"kind"`
	Cause string      `json:"cause"`
	At    time.Time   `json:"at"`
}

type FinalRecord struct {
	WorkflowID     string            `json:"workflow_id"`
	Application    Application       `json:"application"`
	Suggested      SuggestedDecision `json:"suggested_decision"`
	Review         ReviewOutcome     `json:"human_decision"`
	FinalDecision  string            `json:"final_decision"`
	ManualOverride bool              `json:"manual_override"`
	OverrideAction string            `json:"override_action,omitempty"`
	FinalizedAt    time.Time         `json:"finalized_at"`
}

// Summary is the read model returned by the summary query. Pointer fields stay
// nil until the stage that produces them has completed; Pending names them.
type Summary struct {
	WorkflowID        string              `json:"workflow_id"`
	State             State               `json:"state"`
	Application       Application         `json:"application"`
	Acquisition       *AcquisitionBundle  `json:"acquisition,omitempty"`
	Assessment        *AssessmentBundle   `json:"assessment,omitempty"`
	SuggestedDecision *SuggestedDecision  `json:"suggested_decision,omitempty"`
	Review            *ReviewOutcome      `json:"review,omitempty"`
	Abort             *AbortInfo          `json:"abort,omitempty"`
	Pending           []string            `json:"pending,omitempty"`
	StateEnteredAt    map[State]time.Time `json:"state_entered_at"`
}

const (
	FinalResultNotReady  = "not_ready"
	FinalResultFinalized = "finalized"
)

type FinalResultView struct {
	Status string       `json:"status"`
	Record *FinalRecord `json:"record,omitempty"`
}

// Ready reports whether the record is final.
func (v FinalResultView) Ready() bool {
	return v.Status == FinalResultFinalized && v.Record != nil
}

type ApplicationListItem struct {
	WorkflowID    string    `json:"workflow_id"`
	ApplicantID   string    `json:"applicant_id"`
	Name          string    `json:"applicant_name"`
	Amount        float64   `json:"loan_amount"`
	State         State     `json:"state"`
	Suggested     Decision  `json:"ai_recommendation,omitempty"`
	FinalDecision string    `json:"human_decision,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Stats struct {
	Total        int64   `json:"total_applications"`
	InFlight     int64   `json:"running"`
	Finalized    int64   `json:"completed"`
	Aborted      int64   `json:"aborted"`
	Approved     int64   `json:"approved"`
	Rejected     int64   `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
}

type ReviewQueueItem struct {
	WorkflowID  string     `json:"workflow_id"`
	ApplicantID string     `json:"applicant_id"`
	Name        string     `json:"applicant_name"`
	Amount      float64    `json:"loan_amount"`
	Suggested   Decision   `json:"suggested_decision"`
	Confidence  Confidence `json:"confidence"`
	Rationale   string     `json:"reasoning"`
	QueuedAt    time.Time  `json:"queued_at"`
}

type Notification struct {
	WorkflowID    string `json:"workflow_id"`
	Email         string `json:"email"`
	ApplicantName string `json:"applicant_name"`
}
