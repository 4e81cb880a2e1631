package contacts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]*Contact
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]*Contact),
		clock: time.Now,
	}
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Contact) (Contact, error) {
	if c.TenantID == "" || c.ListID == "" || c.Phone == "" {
		return Contact{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	for _, existing := range r.byID {
		if existing.ListID == c.ListID && existing.Phone == c.Phone {
			if c.Name != "" {
				existing.Name = c.Name
			}
			existing.UpdatedAt = now
			return *existing, nil
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ContactStatusPending
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := c
	r.byID[c.ID] = &stored
	return stored, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, tenantID, contactID string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[contactID]
	if !ok || c.TenantID != tenantID {
		return Contact{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) ListByList(ctx context.Context, tenantID, listID string) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Contact
	for _, c := range r.byID {
		if c.TenantID == tenantID && c.ListID == listID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) MarkCalling(ctx context.Context, tenantID, contactID, externalCallID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[contactID]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = ContactStatusCalling
	c.LastCallID = externalCallID
	c.UpdatedAt = r.clock().UTC()
	return nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, tenantID, contactID string, status ContactStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[contactID]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = r.clock().UTC()
	return nil
}

func (r *MemoryRepo) SetStatusByCall(ctx context.Context, tenantID, phone, externalCallID string, status ContactStatus) (bool, error) {
	if tenantID == "" || phone == "" || externalCallID == "" {
		return false, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	updated := false
	for _, c := range r.byID {
		if c.TenantID == tenantID && c.Phone == phone && c.LastCallID == externalCallID {
			c.Status = status
			c.UpdatedAt = r.clock().UTC()
			updated = true
		}
	}
	return updated, nil
}

// Delete removes a contact (test setup for the deleted-contact job path).
func (r *MemoryRepo) Delete(contactID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, contactID)
}
