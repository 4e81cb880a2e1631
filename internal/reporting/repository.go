package reporting

import (
	"context"
	"database/sql"
	"time"

	"callops-platform/internal/calls"
	"callops-platform/internal/credit"
)

// SQLRepository is the Postgres-backed reporting Repository. It reads the
// same tables the calls and credit packages write; reporting never writes.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallRecord, error) {
	const q = `
SELECT id, tenant_id, phone, external_call_id, status, duration_seconds,
       cost_minor, billed, transcript, summary, created_at, updated_at
FROM call_records
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.CallRecord
	for rows.Next() {
		var c calls.CallRecord
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Phone, &c.ExternalCallID, &c.Status,
			&c.DurationSeconds, &c.CostMinor, &c.Billed, &c.Transcript,
			&c.Summary, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]credit.Transaction, error) {
	const q = `
SELECT id, tenant_id, amount_minor, kind, description, status, created_at
FROM credit_transactions
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credit.Transaction
	for rows.Next() {
		var t credit.Transaction
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.AmountMinor, &t.Kind, &t.Description,
			&t.Status, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
