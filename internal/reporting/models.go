package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenant isolation: TenantID is required.

type CallsSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type CallsSummary struct {
	TenantID string `json:"tenant_id"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	ConnectedCalls  int `json:"connected_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	BilledCalls    int   `json:"billed_calls"`
	TotalCostMinor int64 `json:"total_cost_minor"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// ConnectionRate is (completed + connected) / total.
	ConnectionRate float64 `json:"connection_rate"`
}

// SpendSummaryRequest requests aggregated spend metrics.
// Spend is derived from the append-only credit ledger scoped to the tenant.

type SpendSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type SpendSummary struct {
	TenantID string `json:"tenant_id"`

	TotalDebitMinor  int64 `json:"total_debit_minor"`
	TotalCreditMinor int64 `json:"total_credit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	DebitCount  int `json:"debit_count"`
	CreditCount int `json:"credit_count"`
}
