package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitiateCall_SendsProviderRequest(t *testing.T) {
	var got initiateCallBody
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-42", "status": "queued"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	res, err := c.InitiateCall(context.Background(), CallRequest{
		TenantID:       "tenant-1",
		AgentID:        "agent-9",
		RecipientPhone: "15551234567",
	})
	if err != nil {
		t.Fatalf("InitiateCall: %v", err)
	}
	if res.ExternalCallID != "exec-42" {
		t.Errorf("external call id = %q, want exec-42", res.ExternalCallID)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("authorization = %q", auth)
	}
	if got.AgentID != "agent-9" {
		t.Errorf("agent_id = %q", got.AgentID)
	}
	if got.RecipientPhoneNumber != "+15551234567" {
		t.Errorf("recipient = %q, want normalized +15551234567", got.RecipientPhoneNumber)
	}
	if got.Metadata["tenant_id"] != "tenant-1" {
		t.Errorf("metadata tenant_id = %q", got.Metadata["tenant_id"])
	}
}

func TestInitiateCall_FallsBackToIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "call-7"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	res, err := c.InitiateCall(context.Background(), CallRequest{
		TenantID: "t", AgentID: "a", RecipientPhone: "+15550000000",
	})
	if err != nil {
		t.Fatalf("InitiateCall: %v", err)
	}
	if res.ExternalCallID != "call-7" {
		t.Errorf("external call id = %q, want call-7", res.ExternalCallID)
	}
}

func TestInitiateCall_ProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent not found", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.InitiateCall(context.Background(), CallRequest{
		TenantID: "t", AgentID: "a", RecipientPhone: "+15550000000",
	})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}
}

func TestInitiateCall_RejectsIncompleteRequest(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://unused", APIKey: "k"})
	_, err := c.InitiateCall(context.Background(), CallRequest{TenantID: "t"})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}
}
