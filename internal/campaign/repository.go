package campaign

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLRepository is the Postgres-backed Repository.
//
// Assumed table:
// - campaigns (id, tenant_id, agent_id, list_id, title, status,
//   scheduled_at, stats_total, stats_processed, stats_successful,
//   stats_failed, created_at, updated_at)
type SQLRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, clock: time.Now}
}

const campaignColumns = `id, tenant_id, agent_id, list_id, title, status, scheduled_at,
       stats_total, stats_processed, stats_successful, stats_failed, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.AgentID,
		&c.ListID,
		&c.Title,
		&c.Status,
		&c.ScheduledAt,
		&c.Stats.Total,
		&c.Stats.Processed,
		&c.Stats.Successful,
		&c.Stats.Failed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *SQLRepository) Create(ctx context.Context, c Campaign) (Campaign, error) {
	if c.TenantID == "" || c.AgentID == "" || c.ListID == "" {
		return Campaign{}, ErrInvalidTransition
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}

	const q = `
INSERT INTO campaigns (
  id, tenant_id, agent_id, list_id, title, status, scheduled_at,
  stats_total, stats_processed, stats_successful, stats_failed, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,0,0,0,0,$8,$8
)
RETURNING ` + campaignColumns
	return scanCampaign(r.db.QueryRowContext(ctx, q,
		c.ID, c.TenantID, c.AgentID, c.ListID, c.Title, c.Status, c.ScheduledAt, r.clock().UTC(),
	))
}

func (r *SQLRepository) Get(ctx context.Context, tenantID, campaignID string) (Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE tenant_id = $1 AND id = $2
`
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, tenantID, campaignID))
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (r *SQLRepository) SetRunning(ctx context.Context, tenantID, campaignID string, total int) error {
	const q = `
UPDATE campaigns
SET status = $3, stats_total = $4, updated_at = $5
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, tenantID, campaignID, StatusRunning, total, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, tenantID, campaignID string, status Status) error {
	const q = `
UPDATE campaigns
SET status = $3, updated_at = $4
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, tenantID, campaignID, status, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementStats is a single UPDATE: concurrent settlements interleave at
// the row level, so processed can never exceed total and
// processed == successful + failed holds after every call.
func (r *SQLRepository) IncrementStats(ctx context.Context, tenantID, campaignID string, success bool) error {
	const q = `
UPDATE campaigns
SET stats_processed  = stats_processed + 1,
    stats_successful = stats_successful + CASE WHEN $3 THEN 1 ELSE 0 END,
    stats_failed     = stats_failed + CASE WHEN $3 THEN 0 ELSE 1 END,
    updated_at       = $4
WHERE tenant_id = $1 AND id = $2 AND stats_processed < stats_total
`
	res, err := r.db.ExecContext(ctx, q, tenantID, campaignID, success, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the campaign vanished or more results arrived than jobs
		// were scheduled; both are conflicts, not business failures.
		return ErrStatsConflict
	}
	return nil
}
