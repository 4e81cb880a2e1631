package provider

import (
	"math"
	"strings"

	"callops-platform/internal/calls"
)

// WebhookPayload is the callback body sent by the voice provider at each
// call lifecycle transition. The provider has shipped several field-name
// variants over time, so most fields carry an alias; accessors below pick
// the populated one.
type WebhookPayload struct {
	ID     string `json:"id"`
	CallID string `json:"call_id"`

	Status string `json:"status"`

	UserNumber           string `json:"user_number"`
	RecipientPhoneNumber string `json:"recipient_phone_number"`

	ConversationDuration float64 `json:"conversation_duration"`
	Duration             float64 `json:"duration"`

	// Costs arrive as decimal currency units.
	TotalCost float64 `json:"total_cost"`
	Cost      float64 `json:"cost"`

	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`

	TenantID string `json:"tenant_id"`

	UserData  map[string]any `json:"user_data"`
	Variables map[string]any `json:"variables"`
}

// ExternalCallID returns the provider-side call identifier.
func (p *WebhookPayload) ExternalCallID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.CallID
}

// Phone returns the callee phone number, if present.
func (p *WebhookPayload) Phone() string {
	if p.UserNumber != "" {
		return p.UserNumber
	}
	return p.RecipientPhoneNumber
}

// DurationSeconds returns the call duration rounded to whole seconds.
func (p *WebhookPayload) DurationSeconds() int {
	d := p.ConversationDuration
	if d == 0 {
		d = p.Duration
	}
	if d <= 0 {
		return 0
	}
	return int(math.Round(d))
}

// CostMinor converts the provider's decimal cost to minor currency units.
func (p *WebhookPayload) CostMinor() int64 {
	c := p.TotalCost
	if c == 0 {
		c = p.Cost
	}
	if c <= 0 {
		return 0
	}
	return int64(math.Round(c * 100))
}

// AppointmentTime extracts a booked appointment timestamp from the
// post-call extraction variables, if the agent captured one.
func (p *WebhookPayload) AppointmentTime() string {
	for _, m := range []map[string]any{p.Variables, p.UserData} {
		if m == nil {
			continue
		}
		if v, ok := m["appointment_time"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// placeholderTenant reports whether a candidate tenant id is one of the
// junk values that upstream serialization has been observed to emit.
func placeholderTenant(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "null", "undefined":
		return true
	}
	return false
}

// ResolveTenant determines the tenant a callback belongs to. Priority:
// explicit header, then user_data echoed back by the provider, then a
// top-level body field. Placeholder values are treated as absent.
func (p *WebhookPayload) ResolveTenant(headerTenant string) (string, bool) {
	if !placeholderTenant(headerTenant) {
		return strings.TrimSpace(headerTenant), true
	}
	if p.UserData != nil {
		if v, ok := p.UserData["tenant_id"].(string); ok && !placeholderTenant(v) {
			return strings.TrimSpace(v), true
		}
	}
	if !placeholderTenant(p.TenantID) {
		return strings.TrimSpace(p.TenantID), true
	}
	return "", false
}

// NormalizeStatus maps a raw provider status string onto the call status
// vocabulary. The second return is false when the raw value was not
// recognized and the failed fallback was applied.
func NormalizeStatus(raw string) (calls.CallStatus, bool) {
	s := calls.CallStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "ended", "end":
		return calls.CallStatusCompleted, true
	case "ringing":
		return calls.CallStatusCalling, true
	case "error":
		return calls.CallStatusFailed, true
	}
	if s.Valid() {
		return s, true
	}
	return calls.CallStatusFailed, false
}
