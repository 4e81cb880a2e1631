package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callops-platform/internal/contacts"
)

// Repository is the persistence contract for campaigns.
//
// IncrementStats MUST be an atomic counter update ($inc style), never a
// read-modify-write: many jobs for the same campaign settle concurrently.
type Repository interface {
	Create(ctx context.Context, c Campaign) (Campaign, error)
	Get(ctx context.Context, tenantID, campaignID string) (Campaign, error)

	// SetRunning transitions the campaign to running and fixes stats.total.
	SetRunning(ctx context.Context, tenantID, campaignID string, total int) error

	SetStatus(ctx context.Context, tenantID, campaignID string, status Status) error

	// IncrementStats bumps processed and exactly one of successful/failed.
	IncrementStats(ctx context.Context, tenantID, campaignID string, success bool) error
}

// ContactSource is the read model the dispatcher consumes; the contact CRUD
// surface itself is outside this core.
type ContactSource interface {
	ListByList(ctx context.Context, tenantID, listID string) ([]contacts.Contact, error)
}

// AgentResolver resolves a configured agent to its provider-side agent id.
// Agent CRUD is an external collaborator.
type AgentResolver interface {
	ProviderAgentID(ctx context.Context, tenantID, agentID string) (string, error)
}

// CreditGate is the advisory balance check consulted before dispatch.
type CreditGate interface {
	HasMinimumBalance(ctx context.Context, tenantID string, thresholdMinor int64) (bool, error)
}

// ReserveEstimator supplies the per-call reserve used as the gate threshold.
type ReserveEstimator interface {
	EstimatePerCallReserve(ctx context.Context, tenantID string) (int64, error)
}

// Scheduler enqueues one durable job to fire at a given time.
type Scheduler interface {
	Schedule(ctx context.Context, job Job, fireAt time.Time) error
}

var (
	ErrNotFound            = errors.New("campaign: not found")
	ErrAlreadyRunning      = errors.New("campaign: already running")
	ErrInvalidTransition   = errors.New("campaign: invalid status transition")
	ErrInsufficientCredits = errors.New("campaign: insufficient credits")
	ErrNoContacts          = errors.New("campaign: contact list is empty")

	// ErrStatsConflict should not surface given atomic increments; it is
	// fatal and logged distinctly from business failures.
	ErrStatsConflict = errors.New("campaign: stats conflict")
)

// Service drives the campaign dispatch state machine.
//
// Dispatch pacing: job i fires at now + i*spacing. The fixed spacing bounds
// the provider request rate; it is a policy value, not a wall-clock
// guarantee. Only the monotonically increasing fire times are promised.
type Service struct {
	repo     Repository
	source   ContactSource
	agents   AgentResolver
	gate     CreditGate
	reserve  ReserveEstimator
	sched    Scheduler
	spacing  time.Duration
	clock    func() time.Time
}

func NewService(repo Repository, source ContactSource, agents AgentResolver, gate CreditGate, reserve ReserveEstimator, sched Scheduler, spacing time.Duration) *Service {
	if spacing <= 0 {
		spacing = 10 * time.Second
	}
	return &Service{
		repo:    repo,
		source:  source,
		agents:  agents,
		gate:    gate,
		reserve: reserve,
		sched:   sched,
		spacing: spacing,
		clock:   time.Now,
	}
}

// StartResult reports what Start queued; progress is observed via stats.
type StartResult struct {
	CampaignID string `json:"campaign_id"`
	Queued     int    `json:"queued"`
}

// Start schedules one job per pending contact and marks the campaign
// running. The operation returns immediately; job execution is asynchronous.
// Calling Start on an already-running campaign is rejected, not
// double-scheduled.
func (s *Service) Start(ctx context.Context, tenantID, campaignID string) (StartResult, error) {
	if tenantID == "" || campaignID == "" {
		return StartResult{}, ErrNotFound
	}

	c, err := s.repo.Get(ctx, tenantID, campaignID)
	if err != nil {
		return StartResult{}, err
	}
	if c.Status == StatusRunning {
		return StartResult{}, ErrAlreadyRunning
	}

	providerAgentID, err := s.agents.ProviderAgentID(ctx, tenantID, c.AgentID)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: agent %s", ErrNotFound, c.AgentID)
	}

	list, err := s.source.ListByList(ctx, tenantID, c.ListID)
	if err != nil {
		return StartResult{}, err
	}
	pending := make([]contacts.Contact, 0, len(list))
	for _, contact := range list {
		if contact.Status == contacts.ContactStatusPending {
			pending = append(pending, contact)
		}
	}
	if len(pending) == 0 {
		return StartResult{}, ErrNoContacts
	}

	// Advisory credit gate. Billing happens post-hoc from webhook cost data;
	// the ledger's atomic debit is the hard floor, this check only refuses
	// obviously unfunded campaigns.
	reserveMinor, err := s.reserve.EstimatePerCallReserve(ctx, tenantID)
	if err != nil {
		return StartResult{}, err
	}
	funded, err := s.gate.HasMinimumBalance(ctx, tenantID, reserveMinor)
	if err != nil {
		return StartResult{}, err
	}
	if !funded {
		return StartResult{}, ErrInsufficientCredits
	}

	now := s.clock().UTC()
	for i, contact := range pending {
		job := Job{
			ContactID:       contact.ID,
			AgentID:         c.AgentID,
			ProviderAgentID: providerAgentID,
			TenantID:        tenantID,
			CampaignID:      campaignID,
		}
		if err := s.sched.Schedule(ctx, job, now.Add(time.Duration(i)*s.spacing)); err != nil {
			return StartResult{}, fmt.Errorf("schedule contact %s: %w", contact.ID, err)
		}
	}

	if err := s.repo.SetRunning(ctx, tenantID, campaignID, len(pending)); err != nil {
		return StartResult{}, err
	}

	return StartResult{CampaignID: campaignID, Queued: len(pending)}, nil
}

// RecordResult registers one job outcome via atomic stats increments.
func (s *Service) RecordResult(ctx context.Context, tenantID, campaignID string, success bool) error {
	if tenantID == "" || campaignID == "" {
		return ErrNotFound
	}
	return s.repo.IncrementStats(ctx, tenantID, campaignID, success)
}

// Get returns a campaign with its effective status: a running campaign whose
// jobs have all settled reads as completed.
func (s *Service) Get(ctx context.Context, tenantID, campaignID string) (Campaign, error) {
	c, err := s.repo.Get(ctx, tenantID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status == StatusRunning && c.Stats.Settled() {
		c.Status = StatusCompleted
	}
	return c, nil
}

// Pause stops future un-fired jobs from executing. Already-dispatched calls
// are not recalled.
func (s *Service) Pause(ctx context.Context, tenantID, campaignID string) error {
	c, err := s.repo.Get(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	if c.Status != StatusRunning {
		return ErrInvalidTransition
	}
	return s.repo.SetStatus(ctx, tenantID, campaignID, StatusPaused)
}

// IsPaused is consulted by the job executor before dispatching a call.
func (s *Service) IsPaused(ctx context.Context, tenantID, campaignID string) (bool, error) {
	c, err := s.repo.Get(ctx, tenantID, campaignID)
	if err != nil {
		return false, err
	}
	return c.Status == StatusPaused, nil
}
