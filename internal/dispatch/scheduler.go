package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"callops-platform/internal/campaign"
)

// Scheduler enqueues delayed call tasks onto the durable queue. It is the
// campaign service's Scheduler implementation.
type Scheduler struct {
	client *asynq.Client
}

func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client}
}

func (s *Scheduler) Schedule(ctx context.Context, job campaign.Job, fireAt time.Time) error {
	task, err := NewExecuteCallTask(CallTaskPayload{
		TenantID:        job.TenantID,
		CampaignID:      job.CampaignID,
		ContactID:       job.ContactID,
		AgentID:         job.AgentID,
		ProviderAgentID: job.ProviderAgentID,
	})
	if err != nil {
		return fmt.Errorf("build call task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.ProcessAt(fireAt)); err != nil {
		return fmt.Errorf("enqueue call task: %w", err)
	}
	return nil
}
