package campaign

import (
	"context"
	"database/sql"
	"errors"
)

// SQLAgentResolver resolves configured agents to their provider-side ids.
// Agent CRUD lives outside this service; only the lookup is needed here.
//
// Assumed table:
// - agents (id, tenant_id, provider_agent_id, name, created_at, updated_at)
type SQLAgentResolver struct {
	db *sql.DB
}

func NewSQLAgentResolver(db *sql.DB) *SQLAgentResolver {
	return &SQLAgentResolver{db: db}
}

func (r *SQLAgentResolver) ProviderAgentID(ctx context.Context, tenantID, agentID string) (string, error) {
	const q = `
SELECT provider_agent_id
FROM agents
WHERE tenant_id = $1 AND id = $2`

	var providerAgentID string
	err := r.db.QueryRowContext(ctx, q, tenantID, agentID).Scan(&providerAgentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return providerAgentID, nil
}
