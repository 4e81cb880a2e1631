package calls

import (
	"context"
	"sync"
	"testing"
)

func TestUpsert_OneRecordPerExternalID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", Phone: "+15550001", ExternalCallID: "exec-1", Status: CallStatusInitiated,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Reordered/duplicate deliveries for the same id must not create a
	// second record.
	second, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusCompleted, DurationSeconds: 42,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same record, got %q and %q", first.ID, second.ID)
	}
	if len(store.All()) != 1 {
		t.Fatalf("expected exactly one record")
	}
	if second.Status != CallStatusCompleted || second.DurationSeconds != 42 {
		t.Fatalf("unexpected record: %+v", second)
	}
	// Phone came from the first write and must survive the second.
	if second.Phone != "+15550001" {
		t.Fatalf("expected phone preserved, got %q", second.Phone)
	}
}

func TestUpsert_ZeroValuesNeverErase(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusConnected,
		DurationSeconds: 30, CostMinor: 5, Transcript: "hello",
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rec, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusCompleted,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.DurationSeconds != 30 || rec.CostMinor != 5 || rec.Transcript != "hello" {
		t.Fatalf("zero-value upsert erased data: %+v", rec)
	}
	if rec.Status != CallStatusCompleted {
		t.Fatalf("status should be last-write-wins, got %s", rec.Status)
	}
}

func TestUpsert_TerminalStatusNeverDowngraded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Webhook settles the call before the dispatcher's initiated write
	// lands.
	if _, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusCompleted, DurationSeconds: 12,
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rec, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", Phone: "+15550001", ExternalCallID: "exec-1", Status: CallStatusInitiated,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.Status != CallStatusCompleted {
		t.Fatalf("late initiated write reopened a settled call: %s", rec.Status)
	}
	// Non-status fields of the late write still land.
	if rec.Phone != "+15550001" {
		t.Fatalf("expected phone from late write, got %q", rec.Phone)
	}

	// Terminal to terminal stays last-write-wins.
	rec, err = store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusFailed,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.Status != CallStatusFailed {
		t.Fatalf("expected terminal last-write-wins, got %s", rec.Status)
	}
}

func TestClaimBilling_ExactlyOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{
		TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusConnected,
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	const deliveries = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var claims int
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimBilling(ctx, "t1", "exec-1", 5)
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			if ok {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if claims != 1 {
		t.Fatalf("expected exactly one billing claim, got %d", claims)
	}
}

func TestClaimBilling_MissingRecordOrWrongTenant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if ok, err := store.ClaimBilling(ctx, "t1", "ghost", 5); err != nil || ok {
		t.Fatalf("expected no claim for missing record, got ok=%v err=%v", ok, err)
	}

	if _, err := store.Upsert(ctx, UpsertParams{TenantID: "t1", ExternalCallID: "exec-1", Status: CallStatusConnected}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok, _ := store.ClaimBilling(ctx, "t2", "exec-1", 5); ok {
		t.Fatalf("tenant isolation: claim must not cross tenants")
	}
}

func TestCallStatus_Classification(t *testing.T) {
	if !CallStatusCompleted.BillingEligible() || !CallStatusConnected.BillingEligible() {
		t.Fatalf("completed and connected must be billing-eligible")
	}
	if CallStatusFailed.BillingEligible() {
		t.Fatalf("failed must not be billing-eligible")
	}
	if !CallStatusNoAnswer.Terminal() || CallStatusInProgress.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
	if CallStatus("bogus").Valid() {
		t.Fatalf("bogus status must not validate")
	}
}
