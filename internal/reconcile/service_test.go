package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"callops-platform/internal/calls"
	"callops-platform/internal/contacts"
	"callops-platform/internal/credit"
	"callops-platform/internal/provider"
)

type bookedAppointment struct {
	TenantID string
	Phone    string
	At       string
}

type stubCalendar struct {
	mu     sync.Mutex
	fail   bool
	booked []bookedAppointment
}

func (c *stubCalendar) ScheduleAppointment(ctx context.Context, tenantID, phone, at string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("calendar down")
	}
	c.booked = append(c.booked, bookedAppointment{tenantID, phone, at})
	return nil
}

type fixture struct {
	svc      *Service
	store    *calls.MemoryStore
	wallet   *credit.MemoryRepo
	credits  *credit.Service
	contacts *contacts.MemoryRepo
	calendar *stubCalendar
}

func newFixture(t *testing.T, balanceMinor int64) *fixture {
	t.Helper()
	f := &fixture{
		store:    calls.NewMemoryStore(),
		wallet:   credit.NewMemoryRepo(),
		contacts: contacts.NewMemoryRepo(),
		calendar: &stubCalendar{},
	}
	f.wallet.Seed("tenant-1", balanceMinor)
	f.credits = credit.NewService(f.wallet)
	f.svc = NewService(f.store, f.credits, f.contacts, f.calendar, nil)
	return f
}

func TestHandleCallback_BillsOncePerCall(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	// First delivery carries the cost on a connected status.
	err := f.svc.HandleCallback(ctx, "tenant-1", provider.WebhookPayload{
		ID:         "exec-1",
		Status:     "connected",
		UserNumber: "+15550001111",
		TotalCost:  0.05,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	// Terminal callback for the same call reports zero cost.
	err = f.svc.HandleCallback(ctx, "tenant-1", provider.WebhookPayload{
		ID:                   "exec-1",
		Status:               "completed",
		UserNumber:           "+15550001111",
		ConversationDuration: 30,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	w, err := f.credits.GetBalance(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if w.BalanceMinor != 995 {
		t.Errorf("balance = %d, want 995 (one debit of 5)", w.BalanceMinor)
	}
	var debits int
	for _, txn := range f.wallet.Entries() {
		if txn.Kind == credit.TransactionKindDebit {
			debits++
		}
	}
	if debits != 1 {
		t.Errorf("debit transactions = %d, want exactly 1", debits)
	}

	rec, err := f.store.GetByExternalID(ctx, "tenant-1", "exec-1")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if rec.Status != calls.CallStatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.DurationSeconds != 30 || rec.CostMinor != 5 {
		t.Errorf("record = %+v, want duration 30 cost 5 retained", rec)
	}
	if !rec.Billed {
		t.Error("record not marked billed")
	}
}

func TestHandleCallback_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	payload := provider.WebhookPayload{
		ID:         "exec-2",
		Status:     "completed",
		UserNumber: "+15550002222",
		TotalCost:  1.25,
		Transcript: "hello",
	}

	for i := 0; i < 5; i++ {
		if err := f.svc.HandleCallback(ctx, "tenant-1", payload); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	w, _ := f.credits.GetBalance(ctx, "tenant-1")
	if w.BalanceMinor != 875 {
		t.Errorf("balance = %d, want 875 after a single debit of 125", w.BalanceMinor)
	}
	if got := len(f.store.All()); got != 1 {
		t.Errorf("call records = %d, want 1", got)
	}
}

func TestHandleCallback_InsufficientBalanceStillAcks(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	err := f.svc.HandleCallback(ctx, "tenant-1", provider.WebhookPayload{
		ID:         "exec-3",
		Status:     "completed",
		UserNumber: "+15550003333",
		TotalCost:  5.00,
	})
	if err != nil {
		t.Fatalf("shortfall must not reject the callback, got %v", err)
	}

	w, _ := f.credits.GetBalance(ctx, "tenant-1")
	if w.BalanceMinor != 10 {
		t.Errorf("balance = %d, want untouched 10", w.BalanceMinor)
	}
}

func TestHandleCallback_UnidentifiedTenantRejected(t *testing.T) {
	f := newFixture(t, 1000)

	err := f.svc.HandleCallback(context.Background(), "", provider.WebhookPayload{
		ID:       "exec-4",
		Status:   "completed",
		TenantID: "undefined",
	})
	if !errors.Is(err, ErrUnidentifiedTenant) {
		t.Fatalf("err = %v, want ErrUnidentifiedTenant", err)
	}
	if len(f.store.All()) != 0 {
		t.Error("unattributed callback must not write a call record")
	}
}

func TestHandleCallback_TenantResolutionPriority(t *testing.T) {
	f := newFixture(t, 1000)
	f.wallet.Seed("tenant-from-userdata", 1000)

	err := f.svc.HandleCallback(context.Background(), "", provider.WebhookPayload{
		ID:       "exec-5",
		Status:   "completed",
		TenantID: "tenant-from-body",
		UserData: map[string]any{"tenant_id": "tenant-from-userdata"},
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if _, err := f.store.GetByExternalID(context.Background(), "tenant-from-userdata", "exec-5"); err != nil {
		t.Errorf("record not attributed to user_data tenant: %v", err)
	}
}

func TestHandleCallback_PropagatesContactStatus(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	c, err := f.contacts.Upsert(ctx, contacts.Contact{
		TenantID: "tenant-1", ListID: "list-1", Phone: "+15550006666", Name: "Bea",
	})
	if err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	if err := f.contacts.MarkCalling(ctx, "tenant-1", c.ID, "exec-6"); err != nil {
		t.Fatalf("MarkCalling: %v", err)
	}

	err = f.svc.HandleCallback(ctx, "tenant-1", provider.WebhookPayload{
		ID:         "exec-6",
		Status:     "no-answer",
		UserNumber: "+15550006666",
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	got, _ := f.contacts.GetByID(ctx, "tenant-1", c.ID)
	if got.Status != contacts.ContactStatusNoAnswer {
		t.Errorf("contact status = %q, want no-answer", got.Status)
	}
}

func TestHandleCallback_BooksAppointment(t *testing.T) {
	f := newFixture(t, 1000)

	err := f.svc.HandleCallback(context.Background(), "tenant-1", provider.WebhookPayload{
		ID:         "exec-7",
		Status:     "completed",
		UserNumber: "+15550007777",
		Variables:  map[string]any{"appointment_time": "2026-09-03T15:00:00Z"},
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if len(f.calendar.booked) != 1 {
		t.Fatalf("booked = %d, want 1", len(f.calendar.booked))
	}
	b := f.calendar.booked[0]
	if b.TenantID != "tenant-1" || b.Phone != "+15550007777" || b.At != "2026-09-03T15:00:00Z" {
		t.Errorf("unexpected booking %+v", b)
	}
}

func TestHandleCallback_CalendarFailureStillAcks(t *testing.T) {
	f := newFixture(t, 1000)
	f.calendar.fail = true

	err := f.svc.HandleCallback(context.Background(), "tenant-1", provider.WebhookPayload{
		ID:         "exec-8",
		Status:     "completed",
		UserNumber: "+15550008888",
		Variables:  map[string]any{"appointment_time": "2026-09-03T15:00:00Z"},
	})
	if err != nil {
		t.Fatalf("calendar failure must not reject the callback, got %v", err)
	}
}
