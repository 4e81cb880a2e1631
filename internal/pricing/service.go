package pricing

import (
	"context"
	"errors"
	"time"
)

// RateRepository abstracts rate persistence.
// Implementation can be Postgres, cached, etc.
type RateRepository interface {
	FindRate(ctx context.Context, tenantID string, at time.Time) (Rate, bool, error)
}

// Defaults apply when a tenant has no rate row of its own.
type Defaults struct {
	RatePerMinuteMinor  int64
	ExpectedCallMinutes int
}

var ErrInvalidPricingReq = errors.New("invalid pricing request")

// Service derives per-call amounts from tenant-scoped rates.
//
// Contract:
// - Pure calculation + repository lookups.
// - No provider SDK calls; the provider's reported cost always wins at
//   billing time.
type Service struct {
	repo     RateRepository
	defaults Defaults
	clock    func() time.Time
}

func NewService(repo RateRepository, defaults Defaults) *Service {
	if defaults.RatePerMinuteMinor <= 0 {
		defaults.RatePerMinuteMinor = 10
	}
	if defaults.ExpectedCallMinutes <= 0 {
		defaults.ExpectedCallMinutes = 5
	}
	return &Service{repo: repo, defaults: defaults, clock: time.Now}
}

// EstimatePerCallReserve returns the minor-unit balance a tenant should hold
// per queued call. A tenant rate row overrides the configured default rate;
// the expected-duration multiplier is global.
func (s *Service) EstimatePerCallReserve(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, ErrInvalidPricingReq
	}

	ratePerMinute := s.defaults.RatePerMinuteMinor
	r, ok, err := s.repo.FindRate(ctx, tenantID, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	if ok {
		ratePerMinute = r.RatePerMinuteMinor
	}
	return ratePerMinute * int64(s.defaults.ExpectedCallMinutes), nil
}

// EstimateCallCost computes an indicative cost for a finished call of the
// given duration, rounding up to started minutes.
func (s *Service) EstimateCallCost(ctx context.Context, tenantID string, durationSeconds int) (int64, error) {
	if tenantID == "" || durationSeconds < 0 {
		return 0, ErrInvalidPricingReq
	}

	ratePerMinute := s.defaults.RatePerMinuteMinor
	r, ok, err := s.repo.FindRate(ctx, tenantID, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	if ok {
		ratePerMinute = r.RatePerMinuteMinor
	}
	return ratePerMinute * int64(billableMinutes(durationSeconds)), nil
}

func billableMinutes(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
