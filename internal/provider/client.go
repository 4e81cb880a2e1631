package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is the HTTP adapter for the external voice-AI provider.
//
// A token-bucket limiter caps the instantaneous request rate. Campaign
// spacing already paces dispatch; the limiter additionally protects against
// many campaigns (or the single-call path) bursting at once.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
}

// ClientConfig controls the provider adapter.
type ClientConfig struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond bounds outbound call-initiation requests.
	RequestsPerSecond float64
	Burst             int

	Timeout time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) Name() string { return "voiceai" }

type initiateCallBody struct {
	AgentID              string            `json:"agent_id"`
	RecipientPhoneNumber string            `json:"recipient_phone_number"`
	Metadata             map[string]string `json:"metadata"`
}

type initiateCallResponse struct {
	ExecutionID string `json:"execution_id"`
	ID          string `json:"id"`
	Status      string `json:"status"`
}

func (c *Client) InitiateCall(ctx context.Context, req CallRequest) (CallResult, error) {
	if req.TenantID == "" || req.AgentID == "" || req.RecipientPhone == "" {
		return CallResult{}, fmt.Errorf("%w: missing tenant, agent or phone", ErrProvider)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return CallResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	phone := req.RecipientPhone
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	body, err := json.Marshal(initiateCallBody{
		AgentID:              req.AgentID,
		RecipientPhoneNumber: phone,
		Metadata:             map[string]string{"tenant_id": req.TenantID},
	})
	if err != nil {
		return CallResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return CallResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bounded read: error bodies are only for logs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return CallResult{}, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out initiateCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CallResult{}, fmt.Errorf("%w: invalid response: %v", ErrProvider, err)
	}

	externalID := out.ExecutionID
	if externalID == "" {
		externalID = out.ID
	}
	if externalID == "" {
		return CallResult{}, fmt.Errorf("%w: response missing execution id", ErrProvider)
	}

	return CallResult{ExternalCallID: externalID, Status: out.Status}, nil
}
