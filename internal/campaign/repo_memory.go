package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository useful for tests.
// The mutex mirrors the atomicity of the SQL counter update.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]*Campaign
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]*Campaign),
		clock: time.Now,
	}
}

func (r *MemoryRepo) Create(ctx context.Context, c Campaign) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	now := r.clock().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := c
	r.byID[c.ID] = &stored
	return stored, nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, campaignID string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[campaignID]
	if !ok || c.TenantID != tenantID {
		return Campaign{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) SetRunning(ctx context.Context, tenantID, campaignID string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[campaignID]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = StatusRunning
	c.Stats.Total = total
	c.UpdatedAt = r.clock().UTC()
	return nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, tenantID, campaignID string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[campaignID]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = r.clock().UTC()
	return nil
}

func (r *MemoryRepo) IncrementStats(ctx context.Context, tenantID, campaignID string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[campaignID]
	if !ok || c.TenantID != tenantID {
		return ErrStatsConflict
	}
	if c.Stats.Processed >= c.Stats.Total {
		return ErrStatsConflict
	}
	c.Stats.Processed++
	if success {
		c.Stats.Successful++
	} else {
		c.Stats.Failed++
	}
	c.UpdatedAt = r.clock().UTC()
	return nil
}
