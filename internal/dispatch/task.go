package dispatch

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TypeExecuteCall is the asynq task type for one scheduled outbound call.
const TypeExecuteCall = "campaign:execute_call"

// QueueCalls is the asynq queue all call tasks land on.
const QueueCalls = "calls"

// CallTaskPayload is the durable job body. It carries identifiers only; the
// executor re-reads contact and campaign state at fire time, so stale
// snapshots cannot dispatch a call that was since paused or removed.
type CallTaskPayload struct {
	TenantID        string `json:"tenant_id"`
	CampaignID      string `json:"campaign_id"`
	ContactID       string `json:"contact_id"`
	AgentID         string `json:"agent_id"`
	ProviderAgentID string `json:"provider_agent_id"`
}

// NewExecuteCallTask builds the asynq task for a single call. Retries are
// reserved for transient conditions (concurrency cap saturation); business
// failures are recorded in campaign stats and acked.
func NewExecuteCallTask(p CallTaskPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExecuteCall, body,
		asynq.Queue(QueueCalls),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}
