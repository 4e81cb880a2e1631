package campaign

import "time"

// Campaign is a scheduled batch of outbound calls against one contact list
// using one agent.
//
// Multi-tenant invariant: TenantID is required on every row.
//
// Status machine: draft -[create]-> scheduled -[start]-> running
// -[all jobs settled]-> completed, with paused reachable from running by an
// administrative action. Completion is evaluated lazily on read (jobs finish
// out of order; processed == total is the only termination signal).
type Campaign struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	AgentID  string `json:"agent_id" db:"agent_id"`
	ListID   string `json:"list_id" db:"list_id"`

	Title string `json:"title" db:"title"`

	Status Status `json:"status" db:"status"`

	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`

	Stats Stats `json:"stats"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// Stats counters are monotonically non-decreasing and only ever change via
// atomic increments; under any interleaving of concurrent job completions:
// processed == successful + failed and processed <= total.
type Stats struct {
	Total      int `json:"total" db:"stats_total"`
	Processed  int `json:"processed" db:"stats_processed"`
	Successful int `json:"successful" db:"stats_successful"`
	Failed     int `json:"failed" db:"stats_failed"`
}

// Settled reports whether every scheduled job has reported a result.
func (s Stats) Settled() bool {
	return s.Total > 0 && s.Processed == s.Total
}

// Job is the ephemeral scheduling unit for one outbound call. It is not
// persisted beyond the durable queue's own storage.
type Job struct {
	ContactID       string `json:"contact_id"`
	AgentID         string `json:"agent_id"`
	ProviderAgentID string `json:"provider_agent_id"`
	TenantID        string `json:"tenant_id"`
	CampaignID      string `json:"campaign_id"`
}
