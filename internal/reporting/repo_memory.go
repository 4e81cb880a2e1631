package reporting

import (
	"context"
	"time"

	"callops-platform/internal/calls"
	"callops-platform/internal/credit"
)

// MemoryRepo is a simple in-memory repository useful for tests.
type MemoryRepo struct {
	Calls        []calls.CallRecord
	Transactions []credit.Transaction
}

func (r *MemoryRepo) ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallRecord, error) {
	_ = ctx
	var out []calls.CallRecord
	for _, c := range r.Calls {
		if c.TenantID != tenantID {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]credit.Transaction, error) {
	_ = ctx
	var out []credit.Transaction
	for _, t := range r.Transactions {
		if t.TenantID != tenantID {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
