package calls

import "time"

// CallRecord is the local representation of one attempted/placed call.
//
// Multi-tenant invariant: TenantID is required on every row.
//
// ExternalCallID is the provider-issued execution id and the idempotency
// key: at most one record exists per value (UNIQUE(external_call_id) in
// Postgres; this index is load-bearing). A record is created optimistically
// at dispatch time (status=initiated) or lazily by the first webhook for
// that id, whichever write lands first.
//
// Money invariant reminder: billing references external_call_id in the
// credit ledger description; the Billed flag is the single-shot claim that
// prevents a repeated provider cost from debiting twice.
type CallRecord struct {
	ID             string `json:"id" db:"id"`
	TenantID       string `json:"tenant_id" db:"tenant_id"`
	Phone          string `json:"phone" db:"phone"`
	ExternalCallID string `json:"external_call_id" db:"external_call_id"`

	Status CallStatus `json:"status" db:"status"`

	DurationSeconds int   `json:"duration_seconds" db:"duration_seconds"`
	CostMinor       int64 `json:"cost_minor" db:"cost_minor"`

	// Billed is set exactly once, by the reconciler's billing claim.
	Billed bool `json:"billed" db:"billed"`

	Transcript string `json:"transcript,omitempty" db:"transcript"`
	Summary    string `json:"summary,omitempty" db:"summary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallStatus is the internal call-status vocabulary. Provider status strings
// are normalized into this set at the webhook boundary.
type CallStatus string

const (
	CallStatusInitiated    CallStatus = "initiated"
	CallStatusCalling      CallStatus = "calling"
	CallStatusInProgress   CallStatus = "in-progress"
	CallStatusConnected    CallStatus = "connected"
	CallStatusCompleted    CallStatus = "completed"
	CallStatusNotConnected CallStatus = "not_connected"
	CallStatusFailed       CallStatus = "failed"
	CallStatusNoAnswer     CallStatus = "no-answer"
	CallStatusBusy         CallStatus = "busy"
	CallStatusTestCall     CallStatus = "test-call"
)

// BillingEligible reports whether a status represents a call the provider
// charges for. Both completed and connected qualify.
func (s CallStatus) BillingEligible() bool {
	return s == CallStatusCompleted || s == CallStatusConnected
}

// Terminal reports whether no further provider callbacks are expected.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusNotConnected, CallStatusFailed,
		CallStatusNoAnswer, CallStatusBusy:
		return true
	default:
		return false
	}
}

// Valid reports whether s belongs to the internal vocabulary.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusInitiated, CallStatusCalling, CallStatusInProgress,
		CallStatusConnected, CallStatusCompleted, CallStatusNotConnected,
		CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusTestCall:
		return true
	default:
		return false
	}
}

// UpsertParams carries the fields one writer (dispatcher or reconciler)
// knows about. Zero values mean "no information": the upsert never lets a
// zero overwrite earlier data, because provider callbacks only add
// information over time.
type UpsertParams struct {
	TenantID       string
	Phone          string
	ExternalCallID string
	Status         CallStatus

	DurationSeconds int
	CostMinor       int64
	Transcript      string
	Summary         string
}
