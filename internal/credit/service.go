package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for wallets and ledger entries.
//
// DebitIfSufficient and CreditAndLog MUST be atomic: the conditional balance
// mutation and the transaction append happen as one storage operation, never
// as a read followed by a write. Concurrent webhook deliveries and campaign
// jobs hit the same wallet; the conditional decrement is the only hard
// guarantee against overdraw.
type Repository interface {
	GetWallet(ctx context.Context, tenantID string) (Wallet, error)

	// DebitIfSufficient decrements the balance only when balance >= amount,
	// appending txn in the same atomic unit. ok=false means the wallet is
	// missing or the balance was below the requested amount; no mutation and
	// no transaction are recorded in that case.
	DebitIfSufficient(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (newBalance int64, ok bool, err error)

	// CreditAndLog increments the balance (creating the wallet row if absent)
	// and appends txn in the same atomic unit.
	CreditAndLog(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (newBalance int64, err error)

	Transactions(ctx context.Context, tenantID string, limit int) ([]Transaction, error)
}

// Service provides the credit ledger operations.
//
// Money invariants:
// - No balance change without a ledger entry
// - Ledger is append-only (immutable)
// - Debit is a single conditional decrement; the balance is never driven
//   negative by this path
//
// Tenancy invariant:
// - tenant_id is required and passed explicitly to every operation
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInsufficientCredits = errors.New("credit: insufficient credits")
	ErrInvalidArgument     = errors.New("credit: invalid argument")
	ErrNotFound            = errors.New("credit: wallet not found")
)

func (s *Service) GetBalance(ctx context.Context, tenantID string) (Wallet, error) {
	if tenantID == "" {
		return Wallet{}, ErrInvalidArgument
	}
	return s.repo.GetWallet(ctx, tenantID)
}

// HasMinimumBalance reports whether the tenant can afford thresholdMinor.
// A missing wallet counts as a zero balance. This check is advisory: it gates
// dispatch, but the atomic debit is what actually protects the balance floor.
func (s *Service) HasMinimumBalance(ctx context.Context, tenantID string, thresholdMinor int64) (bool, error) {
	if tenantID == "" {
		return false, ErrInvalidArgument
	}
	w, err := s.repo.GetWallet(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return w.BalanceMinor >= thresholdMinor, nil
}

// Debit charges amountMinor against the tenant's wallet.
//
// amount == 0 is a no-op success (zero-cost calls produce no ledger entry).
// A missing wallet or balance < amount fails with ErrInsufficientCredits and
// records nothing.
func (s *Service) Debit(ctx context.Context, tenantID string, amountMinor int64, description string) (int64, error) {
	if tenantID == "" || amountMinor < 0 {
		return 0, ErrInvalidArgument
	}
	if amountMinor == 0 {
		w, err := s.repo.GetWallet(ctx, tenantID)
		if err != nil {
			return 0, err
		}
		return w.BalanceMinor, nil
	}

	txn := Transaction{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		AmountMinor: amountMinor,
		Kind:        TransactionKindDebit,
		Description: description,
		Status:      TransactionStatusCompleted,
		CreatedAt:   s.clock().UTC(),
	}

	bal, ok, err := s.repo.DebitIfSufficient(ctx, tenantID, amountMinor, txn)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrInsufficientCredits
	}
	return bal, nil
}

// Credit adds amountMinor to the tenant's wallet (recharge path).
func (s *Service) Credit(ctx context.Context, tenantID string, amountMinor int64, description string) (int64, error) {
	if tenantID == "" || amountMinor <= 0 {
		return 0, ErrInvalidArgument
	}

	txn := Transaction{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		AmountMinor: amountMinor,
		Kind:        TransactionKindCredit,
		Description: description,
		Status:      TransactionStatusCompleted,
		CreatedAt:   s.clock().UTC(),
	}
	return s.repo.CreditAndLog(ctx, tenantID, amountMinor, txn)
}

// Transactions returns the most recent ledger entries for a tenant.
func (s *Service) Transactions(ctx context.Context, tenantID string, limit int) ([]Transaction, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.Transactions(ctx, tenantID, limit)
}
