package pricing

import (
	"context"
	"testing"
	"time"
)

func TestEstimatePerCallReserve(t *testing.T) {
	repo := &MemoryRepo{Rates: []Rate{
		{
			TenantID:           "tenant-custom",
			RatePerMinuteMinor: 20,
			EffectiveFrom:      time.Unix(0, 0),
			Status:             RateStatusActive,
		},
		{
			TenantID:           "tenant-inactive",
			RatePerMinuteMinor: 99,
			EffectiveFrom:      time.Unix(0, 0),
			Status:             RateStatusInactive,
		},
	}}
	svc := NewService(repo, Defaults{RatePerMinuteMinor: 10, ExpectedCallMinutes: 5})
	ctx := context.Background()

	if got, err := svc.EstimatePerCallReserve(ctx, "tenant-custom"); err != nil || got != 100 {
		t.Errorf("custom rate reserve = (%d, %v), want 100", got, err)
	}
	if got, err := svc.EstimatePerCallReserve(ctx, "tenant-default"); err != nil || got != 50 {
		t.Errorf("default reserve = (%d, %v), want 50", got, err)
	}
	// An inactive rate row falls through to the default.
	if got, err := svc.EstimatePerCallReserve(ctx, "tenant-inactive"); err != nil || got != 50 {
		t.Errorf("inactive rate reserve = (%d, %v), want 50", got, err)
	}
	if _, err := svc.EstimatePerCallReserve(ctx, ""); err == nil {
		t.Error("empty tenant must be rejected")
	}
}

func TestEstimateCallCost_RoundsUpToStartedMinutes(t *testing.T) {
	svc := NewService(&MemoryRepo{}, Defaults{RatePerMinuteMinor: 10, ExpectedCallMinutes: 5})
	ctx := context.Background()

	cases := []struct {
		sec  int
		want int64
	}{
		{0, 0},
		{1, 10},
		{60, 10},
		{61, 20},
		{180, 30},
	}
	for _, c := range cases {
		got, err := svc.EstimateCallCost(ctx, "tenant-1", c.sec)
		if err != nil || got != c.want {
			t.Errorf("EstimateCallCost(%d) = (%d, %v), want %d", c.sec, got, err, c.want)
		}
	}
}

func TestFindRate_MostRecentEffectiveWins(t *testing.T) {
	old := Rate{TenantID: "t", RatePerMinuteMinor: 5, EffectiveFrom: time.Unix(100, 0), Status: RateStatusActive}
	newer := Rate{TenantID: "t", RatePerMinuteMinor: 8, EffectiveFrom: time.Unix(200, 0), Status: RateStatusActive}
	repo := &MemoryRepo{Rates: []Rate{old, newer}}

	got, ok, err := repo.FindRate(context.Background(), "t", time.Unix(300, 0))
	if err != nil || !ok {
		t.Fatalf("FindRate: ok=%v err=%v", ok, err)
	}
	if got.RatePerMinuteMinor != 8 {
		t.Errorf("rate = %d, want newer rate 8", got.RatePerMinuteMinor)
	}
}
