package credit

import "time"

// Wallet is the prepaid balance for one tenant.
//
// Multi-tenant invariant: exactly one wallet row per tenant_id
// (UNIQUE(tenant_id) in Postgres; this index is load-bearing).
//
// Money invariant: the balance is only ever mutated together with an
// appended Transaction, and the debit path must never take it below zero.
type Wallet struct {
	TenantID     string `json:"tenant_id" db:"tenant_id"`
	BalanceMinor int64  `json:"balance_minor" db:"balance_minor"`

	Status WalletStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusInactive WalletStatus = "inactive"
)

// Transaction is an immutable append-only ledger entry.
//
// AmountMinor is a positive magnitude; Kind carries the direction.
// Audit invariant: for any tenant at a quiescent point,
// sum(CREDIT) - sum(DEBIT) equals the wallet balance.
type Transaction struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	AmountMinor int64           `json:"amount_minor" db:"amount_minor"`
	Kind        TransactionKind `json:"kind" db:"kind"`

	// Description is a short human-readable reason, e.g. "Call to +1555..".
	Description string `json:"description,omitempty" db:"description"`

	Status TransactionStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TransactionKind string

const (
	TransactionKindCredit TransactionKind = "CREDIT" // recharge, adjustment
	TransactionKindDebit  TransactionKind = "DEBIT"  // call charge
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)
