package credit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestDebit_GateAndFloor(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Seed("t1", 100)
	svc := NewService(repo)
	ctx := context.Background()

	ok, err := svc.HasMinimumBalance(ctx, "t1", 15)
	if err != nil || !ok {
		t.Fatalf("expected sufficient balance, got ok=%v err=%v", ok, err)
	}

	bal, err := svc.Debit(ctx, "t1", 100, "x")
	if err != nil || bal != 0 {
		t.Fatalf("expected balance 0, got %d err=%v", bal, err)
	}

	if _, err := svc.Debit(ctx, "t1", 1, "y"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	// Failed debit must not emit a transaction.
	if n := len(repo.Entries()); n != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", n)
	}
}

func TestDebit_ZeroAndNegativeAmounts(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Seed("t1", 50)
	svc := NewService(repo)
	ctx := context.Background()

	bal, err := svc.Debit(ctx, "t1", 0, "noop")
	if err != nil || bal != 50 {
		t.Fatalf("zero debit should be a no-op success, got %d err=%v", bal, err)
	}
	if len(repo.Entries()) != 0 {
		t.Fatalf("zero debit must not append a transaction")
	}

	if _, err := svc.Debit(ctx, "t1", -5, "bad"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDebit_MissingWallet(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	// Missing wallet reads as zero for the gate check...
	ok, err := svc.HasMinimumBalance(ctx, "ghost", 1)
	if err != nil || ok {
		t.Fatalf("expected gate false for missing wallet, got ok=%v err=%v", ok, err)
	}
	// ...but is a hard failure for Debit.
	if _, err := svc.Debit(ctx, "ghost", 10, "x"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Seed("t1", 1000)
	svc := NewService(repo)
	ctx := context.Background()

	const workers = 50
	const amount = 30 // 50*30 = 1500 > 1000, some must fail

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(ctx, "t1", amount, "call"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	w, err := repo.GetWallet(ctx, "t1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := int64(1000) - int64(succeeded)*amount
	if w.BalanceMinor != want {
		t.Fatalf("balance %d, want %d (succeeded=%d)", w.BalanceMinor, want, succeeded)
	}
	if w.BalanceMinor < 0 {
		t.Fatalf("balance went negative: %d", w.BalanceMinor)
	}
	if n := len(repo.Entries()); n != succeeded {
		t.Fatalf("expected %d ledger entries, got %d", succeeded, n)
	}
}

func TestLedgerSumEqualsBalance(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "t1", 500, "recharge"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Debit(ctx, "t1", 120, "call a"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Debit(ctx, "t1", 80, "call b"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Credit(ctx, "t1", 25, "topup"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var sum int64
	for _, e := range repo.Entries() {
		switch e.Kind {
		case TransactionKindCredit:
			sum += e.AmountMinor
		case TransactionKindDebit:
			sum -= e.AmountMinor
		}
	}
	w, _ := repo.GetWallet(ctx, "t1")
	if sum != w.BalanceMinor {
		t.Fatalf("ledger sum %d != balance %d", sum, w.BalanceMinor)
	}
}

func TestCredit_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.Credit(context.Background(), "t1", 0, "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.Credit(context.Background(), "", 10, "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
