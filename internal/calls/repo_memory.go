package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store useful for tests.
// The mutex mirrors the atomicity of the SQL upsert and billing claim.
// It is not intended for production use.
type MemoryStore struct {
	mu      sync.Mutex
	byExtID map[string]*CallRecord
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byExtID: make(map[string]*CallRecord),
		clock:   time.Now,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, p UpsertParams) (CallRecord, error) {
	if p.TenantID == "" || p.ExternalCallID == "" || !p.Status.Valid() {
		return CallRecord{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	rec, ok := s.byExtID[p.ExternalCallID]
	if !ok {
		rec = &CallRecord{
			ID:             uuid.NewString(),
			TenantID:       p.TenantID,
			ExternalCallID: p.ExternalCallID,
			CreatedAt:      now,
		}
		s.byExtID[p.ExternalCallID] = rec
	}

	if p.Status.Terminal() || !rec.Status.Terminal() {
		rec.Status = p.Status
	}
	if p.Phone != "" {
		rec.Phone = p.Phone
	}
	if p.DurationSeconds > rec.DurationSeconds {
		rec.DurationSeconds = p.DurationSeconds
	}
	if rec.CostMinor == 0 {
		rec.CostMinor = p.CostMinor
	}
	if p.Transcript != "" {
		rec.Transcript = p.Transcript
	}
	if p.Summary != "" {
		rec.Summary = p.Summary
	}
	rec.UpdatedAt = now

	return *rec, nil
}

func (s *MemoryStore) ClaimBilling(ctx context.Context, tenantID, externalCallID string, costMinor int64) (bool, error) {
	if tenantID == "" || externalCallID == "" || costMinor <= 0 {
		return false, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byExtID[externalCallID]
	if !ok || rec.TenantID != tenantID || rec.Billed {
		return false, nil
	}
	rec.CostMinor = costMinor
	rec.Billed = true
	rec.UpdatedAt = s.clock().UTC()
	return true, nil
}

func (s *MemoryStore) GetByExternalID(ctx context.Context, tenantID, externalCallID string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byExtID[externalCallID]
	if !ok || rec.TenantID != tenantID {
		return CallRecord{}, ErrNotFound
	}
	return *rec, nil
}

// All returns every stored record (test inspection).
func (s *MemoryStore) All() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0, len(s.byExtID))
	for _, rec := range s.byExtID {
		out = append(out, *rec)
	}
	return out
}
