package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"

	"callops-platform/internal/calls"
	"callops-platform/internal/contacts"
	"callops-platform/internal/provider"
)

type stubCampaigns struct {
	mu      sync.Mutex
	paused  bool
	results []bool
}

func (s *stubCampaigns) IsPaused(ctx context.Context, tenantID, campaignID string) (bool, error) {
	return s.paused, nil
}

func (s *stubCampaigns) RecordResult(ctx context.Context, tenantID, campaignID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, success)
	return nil
}

type stubProvider struct {
	mu       sync.Mutex
	fail     bool
	requests []provider.CallRequest
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) InitiateCall(ctx context.Context, req provider.CallRequest) (provider.CallResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return provider.CallResult{}, provider.ErrProvider
	}
	p.requests = append(p.requests, req)
	return provider.CallResult{ExternalCallID: "exec-" + req.RecipientPhone, Status: "queued"}, nil
}

type stubCaps struct {
	deny     bool
	acquired int
	released int
}

func (c *stubCaps) Acquire(ctx context.Context, tenantID string) (bool, error) {
	if c.deny {
		return false, nil
	}
	c.acquired++
	return true, nil
}

func (c *stubCaps) Release(ctx context.Context, tenantID string) error {
	c.released++
	return nil
}

type fixture struct {
	exec     *Executor
	contacts *contacts.MemoryRepo
	camps    *stubCampaigns
	voice    *stubProvider
	callLog  *calls.MemoryStore
	caps     *stubCaps
	contact  contacts.Contact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := contacts.NewMemoryRepo()
	contact, err := repo.Upsert(context.Background(), contacts.Contact{
		TenantID: "tenant-1",
		ListID:   "list-1",
		Phone:    "+15550001111",
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	f := &fixture{
		contacts: repo,
		camps:    &stubCampaigns{},
		voice:    &stubProvider{},
		callLog:  calls.NewMemoryStore(),
		caps:     &stubCaps{},
		contact:  contact,
	}
	f.exec = NewExecutor(f.contacts, f.camps, f.voice, f.callLog, f.caps, nil)
	return f
}

func (f *fixture) task(t *testing.T) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(CallTaskPayload{
		TenantID:        "tenant-1",
		CampaignID:      "camp-1",
		ContactID:       f.contact.ID,
		AgentID:         "agent-1",
		ProviderAgentID: "prov-agent-1",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(TypeExecuteCall, body)
}

func TestHandleExecuteCall_DispatchesAndRecords(t *testing.T) {
	f := newFixture(t)

	if err := f.exec.HandleExecuteCall(context.Background(), f.task(t)); err != nil {
		t.Fatalf("HandleExecuteCall: %v", err)
	}

	if len(f.voice.requests) != 1 {
		t.Fatalf("provider requests = %d, want 1", len(f.voice.requests))
	}
	req := f.voice.requests[0]
	if req.AgentID != "prov-agent-1" || req.RecipientPhone != "+15550001111" {
		t.Errorf("unexpected provider request %+v", req)
	}

	c, err := f.contacts.GetByID(context.Background(), "tenant-1", f.contact.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Status != contacts.ContactStatusCalling {
		t.Errorf("contact status = %q, want calling", c.Status)
	}
	if c.LastCallID == "" {
		t.Error("contact last call id not set")
	}

	recs := f.callLog.All()
	if len(recs) != 1 || recs[0].Status != calls.CallStatusInitiated {
		t.Errorf("call log = %+v, want one initiated record", recs)
	}
	if got := f.camps.results; len(got) != 1 || !got[0] {
		t.Errorf("campaign results = %v, want [true]", got)
	}
	if f.caps.released != 1 {
		t.Errorf("cap released %d times, want 1", f.caps.released)
	}
}

func TestHandleExecuteCall_ProviderFailureSettlesJob(t *testing.T) {
	f := newFixture(t)
	f.voice.fail = true

	if err := f.exec.HandleExecuteCall(context.Background(), f.task(t)); err != nil {
		t.Fatalf("business failure must ack, got %v", err)
	}

	c, _ := f.contacts.GetByID(context.Background(), "tenant-1", f.contact.ID)
	if c.Status != contacts.ContactStatusFailed {
		t.Errorf("contact status = %q, want failed", c.Status)
	}
	if got := f.camps.results; len(got) != 1 || got[0] {
		t.Errorf("campaign results = %v, want [false]", got)
	}
	if f.caps.released != f.caps.acquired {
		t.Errorf("cap leak: acquired %d released %d", f.caps.acquired, f.caps.released)
	}
}

func TestHandleExecuteCall_CapSaturationRetries(t *testing.T) {
	f := newFixture(t)
	f.caps.deny = true

	err := f.exec.HandleExecuteCall(context.Background(), f.task(t))
	if !errors.Is(err, ErrCapSaturated) {
		t.Fatalf("err = %v, want ErrCapSaturated", err)
	}
	if len(f.voice.requests) != 0 {
		t.Error("provider must not be called when cap is saturated")
	}
	if len(f.camps.results) != 0 {
		t.Error("no result must be recorded on retryable error")
	}
}

func TestHandleExecuteCall_PausedCampaignSkips(t *testing.T) {
	f := newFixture(t)
	f.camps.paused = true

	if err := f.exec.HandleExecuteCall(context.Background(), f.task(t)); err != nil {
		t.Fatalf("paused skip must ack, got %v", err)
	}
	if len(f.voice.requests) != 0 {
		t.Error("provider must not be called for a paused campaign")
	}
	if len(f.camps.results) != 0 {
		t.Error("paused skip must not settle stats")
	}
}

func TestHandleExecuteCall_DeletedContactSettlesAsFailed(t *testing.T) {
	f := newFixture(t)
	f.contacts.Delete(f.contact.ID)

	if err := f.exec.HandleExecuteCall(context.Background(), f.task(t)); err != nil {
		t.Fatalf("deleted contact must ack, got %v", err)
	}
	if len(f.voice.requests) != 0 {
		t.Error("provider must not be called for a deleted contact")
	}
	if got := f.camps.results; len(got) != 1 || got[0] {
		t.Errorf("campaign results = %v, want [false]", got)
	}
}

func TestHandleExecuteCall_NonPendingContactSkips(t *testing.T) {
	f := newFixture(t)
	if err := f.contacts.SetStatus(context.Background(), "tenant-1", f.contact.ID, contacts.ContactStatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := f.exec.HandleExecuteCall(context.Background(), f.task(t)); err != nil {
		t.Fatalf("non-pending skip must ack, got %v", err)
	}
	if len(f.voice.requests) != 0 {
		t.Error("provider must not be called for a settled contact")
	}
}
