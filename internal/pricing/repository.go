package pricing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLRateRepository is the Postgres-backed RateRepository.
//
// Assumed table:
// - rates (id, tenant_id, currency, rate_per_minute_minor, effective_from,
//   effective_to, status, created_at, updated_at)
type SQLRateRepository struct {
	db *sql.DB
}

func NewSQLRateRepository(db *sql.DB) *SQLRateRepository {
	return &SQLRateRepository{db: db}
}

func (r *SQLRateRepository) FindRate(ctx context.Context, tenantID string, at time.Time) (Rate, bool, error) {
	const q = `
SELECT id, tenant_id, currency, rate_per_minute_minor, effective_from,
       effective_to, status, created_at, updated_at
FROM rates
WHERE tenant_id = $1
  AND status = $2
  AND effective_from <= $3
  AND (effective_to IS NULL OR effective_to > $3)
ORDER BY effective_from DESC
LIMIT 1`

	var out Rate
	err := r.db.QueryRowContext(ctx, q, tenantID, RateStatusActive, at).Scan(
		&out.ID,
		&out.TenantID,
		&out.Currency,
		&out.RatePerMinuteMinor,
		&out.EffectiveFrom,
		&out.EffectiveTo,
		&out.Status,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, err
	}
	return out, true, nil
}
