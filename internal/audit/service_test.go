package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminCredit}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{TenantID: "t"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminCredit(context.Background(), "t", "u", "super_admin", "1.2.3.4", 5000, "manual recharge"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogCampaignAction(context.Background(), "t", "u", "1.2.3.4", "camp-1", "start"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].AmountMinor != 5000 {
		t.Fatalf("admin credit event not captured: %+v", evs[0])
	}
	if evs[1].Type != EventTypeCampaignAction || evs[1].CampaignID != "camp-1" {
		t.Fatalf("campaign action event not captured: %+v", evs[1])
	}
}
