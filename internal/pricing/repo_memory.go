package pricing

import (
	"context"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early development.
//
// NOTE: This is not intended for production; replace with Postgres implementation.
type MemoryRepo struct {
	Rates []Rate
}

func (r *MemoryRepo) FindRate(ctx context.Context, tenantID string, at time.Time) (Rate, bool, error) {
	_ = ctx

	// Prefer the most recent effective rate row.
	var best Rate
	found := false

	for _, p := range r.Rates {
		if p.TenantID != tenantID {
			continue
		}
		if p.Status != RateStatusActive {
			continue
		}
		if at.Before(p.EffectiveFrom) {
			continue
		}
		if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
			continue
		}

		if !found || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = p
			found = true
		}
	}

	return best, found, nil
}
