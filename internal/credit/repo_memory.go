package credit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests.
// The mutex mirrors the atomicity of the SQL conditional decrement.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	wallets map[string]*Wallet
	entries []Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{wallets: make(map[string]*Wallet)}
}

// Seed sets a wallet balance directly (test setup only; writes no entry).
func (r *MemoryRepo) Seed(tenantID string, balanceMinor int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[tenantID] = &Wallet{TenantID: tenantID, BalanceMinor: balanceMinor, Status: WalletStatusActive}
}

func (r *MemoryRepo) GetWallet(ctx context.Context, tenantID string) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[tenantID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return *w, nil
}

func (r *MemoryRepo) DebitIfSufficient(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[tenantID]
	if !ok || w.BalanceMinor < amountMinor {
		return 0, false, nil
	}
	w.BalanceMinor -= amountMinor
	r.entries = append(r.entries, txn)
	return w.BalanceMinor, true, nil
}

func (r *MemoryRepo) CreditAndLog(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[tenantID]
	if !ok {
		w = &Wallet{TenantID: tenantID, Status: WalletStatusActive}
		r.wallets[tenantID] = w
	}
	w.BalanceMinor += amountMinor
	r.entries = append(r.entries, txn)
	return w.BalanceMinor, nil
}

func (r *MemoryRepo) Transactions(ctx context.Context, tenantID string, limit int) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

// Entries returns every appended transaction (test inspection).
func (r *MemoryRepo) Entries() []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, len(r.entries))
	copy(out, r.entries)
	return out
}
