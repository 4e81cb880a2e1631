package audit

import (
	"context"
	"database/sql"
)

// SQLRepository is the Postgres-backed append-only Repository.
//
// Assumed table:
// - audit_events (id, tenant_id, type, actor_user_id, actor_role,
//   ip_address, campaign_id, call_id, amount_minor, message, metadata,
//   created_at) with an INSERT-only policy.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, tenant_id, type, actor_user_id, actor_role, ip_address,
  campaign_id, call_id, amount_minor, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.CampaignID,
		e.CallID,
		e.AmountMinor,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
