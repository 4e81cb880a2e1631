package provider

import (
	"context"
	"errors"
)

// VoiceProvider is the provider-agnostic interface used by the dispatcher.
//
// Rules:
// - No provider HTTP calls outside this package.
// - All requests are tenant-scoped (tenant_id required and carried in the
//   request metadata so callbacks can be routed back to the tenant).
// - The returned ExternalCallID is the idempotency key for the call record;
//   nothing downstream works without it.
type VoiceProvider interface {
	Name() string
	InitiateCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// CallRequest asks the provider to place one outbound AI call.
type CallRequest struct {
	TenantID string `json:"tenant_id"`

	// AgentID is the provider-side agent id, already resolved from the
	// tenant's agent configuration.
	AgentID string `json:"agent_id"`

	// RecipientPhone is E.164 where possible; a missing "+" is added by the
	// adapter.
	RecipientPhone string `json:"recipient_phone"`
}

// CallResult is the provider's acknowledgement of an accepted call.
type CallResult struct {
	// ExternalCallID is the provider-issued execution id.
	ExternalCallID string `json:"external_call_id"`

	Status string `json:"status,omitempty"`
}

// ErrProvider wraps transport errors and non-2xx provider responses. A
// dispatch-time provider failure marks the individual contact/job failed; it
// never aborts the rest of the campaign.
var ErrProvider = errors.New("provider: call initiation failed")
