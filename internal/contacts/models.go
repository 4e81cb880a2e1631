package contacts

import "time"

// Contact is one dialable entry in a tenant's contact list.
//
// Uniqueness invariant: phone is unique within (list_id, phone): the same
// number may appear in different lists (or tenants) but never twice in one
// list. The compound unique index is load-bearing: imports are upserts on
// that key, never insert-then-check.
//
// Status machine: pending → calling (on dispatch) → completed|failed|
// no-answer|busy (on webhook or job failure). Terminal states are only left
// by an explicit retry action, which is not part of this core.
type Contact struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	ListID   string `json:"list_id" db:"list_id"`

	Phone string `json:"phone" db:"phone"`
	Name  string `json:"name,omitempty" db:"name"`

	Status ContactStatus `json:"status" db:"status"`

	RetryCount int `json:"retry_count" db:"retry_count"`

	// LastCallID holds the external call id of the most recent dispatch.
	// Webhook contact updates match on (phone, last_call_id) so a callback
	// never cross-updates an unrelated in-flight call to the same number.
	LastCallID string `json:"last_call_id,omitempty" db:"last_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "pending"
	ContactStatusCalling   ContactStatus = "calling"
	ContactStatusCompleted ContactStatus = "completed"
	ContactStatusFailed    ContactStatus = "failed"
	ContactStatusNoAnswer  ContactStatus = "no-answer"
	ContactStatusBusy      ContactStatus = "busy"
)
