package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for call records.
//
// Upsert and ClaimBilling MUST each be a single atomic storage operation.
// The dispatcher and the reconciler write concurrently to the same record;
// the unique index on external_call_id plus upsert semantics resolve the
// race without a transaction spanning both writers.
type Store interface {
	// Upsert inserts or updates the record keyed by external_call_id.
	// Field semantics are last-write-wins, except that a zero value never
	// overwrites earlier data (duration keeps its maximum, cost is
	// write-once, empty transcript/summary are ignored) and a terminal
	// status is never downgraded to a non-terminal one. A webhook can land
	// before the dispatcher's own initiated write; that late write must
	// not reopen a settled call. The status literals in the SQL mirror
	// CallStatus.Terminal.
	Upsert(ctx context.Context, p UpsertParams) (CallRecord, error)

	// ClaimBilling atomically records costMinor and marks the record billed,
	// only if it has not been billed before. claimed=false means another
	// delivery already claimed it (or the record is missing).
	ClaimBilling(ctx context.Context, tenantID, externalCallID string, costMinor int64) (claimed bool, err error)

	GetByExternalID(ctx context.Context, tenantID, externalCallID string) (CallRecord, error)
}

var (
	ErrNotFound        = errors.New("calls: record not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// SQLStore is the Postgres-backed Store.
//
// Assumed table:
// - call_records (id, tenant_id, phone, external_call_id UNIQUE, status,
//   duration_seconds, cost_minor, billed, transcript, summary,
//   created_at, updated_at)
type SQLStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, clock: time.Now}
}

func (s *SQLStore) Upsert(ctx context.Context, p UpsertParams) (CallRecord, error) {
	if p.TenantID == "" || p.ExternalCallID == "" || !p.Status.Valid() {
		return CallRecord{}, ErrInvalidArgument
	}

	const q = `
INSERT INTO call_records (
  id, tenant_id, phone, external_call_id, status,
  duration_seconds, cost_minor, billed, transcript, summary, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,false,$8,$9,$10,$10
)
ON CONFLICT (external_call_id)
DO UPDATE SET
  status           = CASE WHEN call_records.status IN ('completed','not_connected','failed','no-answer','busy')
                           AND EXCLUDED.status NOT IN ('completed','not_connected','failed','no-answer','busy')
                          THEN call_records.status
                          ELSE EXCLUDED.status END,
  phone            = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE call_records.phone END,
  duration_seconds = GREATEST(call_records.duration_seconds, EXCLUDED.duration_seconds),
  cost_minor       = CASE WHEN call_records.cost_minor > 0 THEN call_records.cost_minor ELSE EXCLUDED.cost_minor END,
  transcript       = CASE WHEN EXCLUDED.transcript <> '' THEN EXCLUDED.transcript ELSE call_records.transcript END,
  summary          = CASE WHEN EXCLUDED.summary <> '' THEN EXCLUDED.summary ELSE call_records.summary END,
  updated_at       = EXCLUDED.updated_at
RETURNING id, tenant_id, phone, external_call_id, status,
          duration_seconds, cost_minor, billed, transcript, summary, created_at, updated_at
`
	now := s.clock().UTC()
	var rec CallRecord
	err := s.db.QueryRowContext(ctx, q,
		uuid.NewString(),
		p.TenantID,
		p.Phone,
		p.ExternalCallID,
		p.Status,
		p.DurationSeconds,
		p.CostMinor,
		p.Transcript,
		p.Summary,
		now,
	).Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.Phone,
		&rec.ExternalCallID,
		&rec.Status,
		&rec.DurationSeconds,
		&rec.CostMinor,
		&rec.Billed,
		&rec.Transcript,
		&rec.Summary,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	return rec, nil
}

func (s *SQLStore) ClaimBilling(ctx context.Context, tenantID, externalCallID string, costMinor int64) (bool, error) {
	if tenantID == "" || externalCallID == "" || costMinor <= 0 {
		return false, ErrInvalidArgument
	}

	// Single conditional update: the NOT billed predicate is the claim.
	const q = `
UPDATE call_records
SET cost_minor = $3,
    billed = true,
    updated_at = $4
WHERE tenant_id = $1 AND external_call_id = $2 AND NOT billed
`
	res, err := s.db.ExecContext(ctx, q, tenantID, externalCallID, costMinor, s.clock().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) GetByExternalID(ctx context.Context, tenantID, externalCallID string) (CallRecord, error) {
	const q = `
SELECT id, tenant_id, phone, external_call_id, status,
       duration_seconds, cost_minor, billed, transcript, summary, created_at, updated_at
FROM call_records
WHERE tenant_id = $1 AND external_call_id = $2
`
	var rec CallRecord
	err := s.db.QueryRowContext(ctx, q, tenantID, externalCallID).Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.Phone,
		&rec.ExternalCallID,
		&rec.Status,
		&rec.DurationSeconds,
		&rec.CostMinor,
		&rec.Billed,
		&rec.Transcript,
		&rec.Summary,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, err
	}
	return rec, nil
}
