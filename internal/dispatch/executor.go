package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"callops-platform/internal/calls"
	"callops-platform/internal/contacts"
	"callops-platform/internal/provider"
	"callops-platform/pkg/utils"
)

// ContactStore is the slice of the contact repository the executor needs.
type ContactStore interface {
	GetByID(ctx context.Context, tenantID, contactID string) (contacts.Contact, error)
	MarkCalling(ctx context.Context, tenantID, contactID, externalCallID string) error
	SetStatus(ctx context.Context, tenantID, contactID string, status contacts.ContactStatus) error
}

// CampaignControl is consulted for pause state and receives job outcomes.
type CampaignControl interface {
	IsPaused(ctx context.Context, tenantID, campaignID string) (bool, error)
	RecordResult(ctx context.Context, tenantID, campaignID string, success bool) error
}

// CallLog records initiated calls so later webhooks upsert into an existing
// row keyed by external call id.
type CallLog interface {
	Upsert(ctx context.Context, p calls.UpsertParams) (calls.CallRecord, error)
}

// ConcurrencyCaps bounds in-flight calls per tenant.
type ConcurrencyCaps interface {
	Acquire(ctx context.Context, tenantID string) (bool, error)
	Release(ctx context.Context, tenantID string) error
}

// ErrCapSaturated is returned to asynq so the task retries with backoff
// instead of being dropped.
var ErrCapSaturated = errors.New("dispatch: tenant concurrency cap saturated")

// RedisCaps implements ConcurrencyCaps on the shared redis Lua scripts.
type RedisCaps struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisCaps(rdb *redis.Client, limit int, ttl time.Duration) *RedisCaps {
	if limit <= 0 {
		limit = 5
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCaps{rdb: rdb, limit: limit, ttl: ttl}
}

func capKey(tenantID string) string { return "concurrency:calls:" + tenantID }

func (c *RedisCaps) Acquire(ctx context.Context, tenantID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, c.rdb, capKey(tenantID), c.limit, c.ttl)
}

func (c *RedisCaps) Release(ctx context.Context, tenantID string) error {
	return utils.ReleaseConcurrencyCap(ctx, c.rdb, capKey(tenantID))
}

// Executor consumes call tasks at their scheduled fire time. State is
// re-read at execution, so a pause or contact deletion between scheduling
// and firing is honored.
type Executor struct {
	contacts  ContactStore
	campaigns CampaignControl
	voice     provider.VoiceProvider
	callLog   CallLog
	caps      ConcurrencyCaps
	log       *slog.Logger
}

func NewExecutor(cs ContactStore, cc CampaignControl, voice provider.VoiceProvider, callLog CallLog, caps ConcurrencyCaps, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{contacts: cs, campaigns: cc, voice: voice, callLog: callLog, caps: caps, log: log}
}

// Register attaches the executor's handlers to an asynq mux.
func (e *Executor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeExecuteCall, e.HandleExecuteCall)
}

// HandleExecuteCall runs one scheduled call. Business failures (provider
// rejection, missing contact) are recorded in campaign stats and acked;
// only cap saturation returns an error for retry.
func (e *Executor) HandleExecuteCall(ctx context.Context, t *asynq.Task) error {
	var p CallTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode call task: %v: %w", err, asynq.SkipRetry)
	}
	log := e.log.With("tenant_id", p.TenantID, "campaign_id", p.CampaignID, "contact_id", p.ContactID)

	paused, err := e.campaigns.IsPaused(ctx, p.TenantID, p.CampaignID)
	if err != nil {
		log.Warn("campaign lookup failed, dropping job", "error", err)
		return nil
	}
	if paused {
		log.Info("campaign paused, skipping call")
		return nil
	}

	contact, err := e.contacts.GetByID(ctx, p.TenantID, p.ContactID)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			// Contact removed after scheduling. Settle the slot so the
			// campaign can still complete.
			log.Info("contact gone, settling job as failed")
			e.recordResult(ctx, log, p, false)
			return nil
		}
		return err
	}
	if contact.Status != contacts.ContactStatusPending {
		log.Info("contact no longer pending, skipping", "status", contact.Status)
		return nil
	}

	ok, err := e.caps.Acquire(ctx, p.TenantID)
	if err != nil {
		return fmt.Errorf("acquire concurrency cap: %w", err)
	}
	if !ok {
		return ErrCapSaturated
	}
	defer func() {
		if err := e.caps.Release(ctx, p.TenantID); err != nil {
			log.Warn("release concurrency cap failed", "error", err)
		}
	}()

	res, err := e.voice.InitiateCall(ctx, provider.CallRequest{
		TenantID:       p.TenantID,
		AgentID:        p.ProviderAgentID,
		RecipientPhone: contact.Phone,
	})
	if err != nil {
		log.Warn("call initiation failed", "error", err)
		if serr := e.contacts.SetStatus(ctx, p.TenantID, p.ContactID, contacts.ContactStatusFailed); serr != nil {
			log.Error("mark contact failed", "error", serr)
		}
		e.recordResult(ctx, log, p, false)
		return nil
	}

	if err := e.contacts.MarkCalling(ctx, p.TenantID, p.ContactID, res.ExternalCallID); err != nil {
		log.Error("mark contact calling", "error", err)
	}
	if _, err := e.callLog.Upsert(ctx, calls.UpsertParams{
		TenantID:       p.TenantID,
		Phone:          contact.Phone,
		ExternalCallID: res.ExternalCallID,
		Status:         calls.CallStatusInitiated,
	}); err != nil {
		log.Error("record initiated call", "error", err)
	}
	e.recordResult(ctx, log, p, true)

	log.Info("call dispatched", "external_call_id", res.ExternalCallID)
	return nil
}

func (e *Executor) recordResult(ctx context.Context, log *slog.Logger, p CallTaskPayload, success bool) {
	if err := e.campaigns.RecordResult(ctx, p.TenantID, p.CampaignID, success); err != nil {
		log.Error("record campaign result", "error", err, "success", success)
	}
}
