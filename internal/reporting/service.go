package reporting

import (
	"context"
	"errors"
	"time"

	"callops-platform/internal/calls"
	"callops-platform/internal/credit"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce tenant filtering.
// - Implementations should query immutable sources (credit ledger, call records).

type Repository interface {
	ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallRecord, error)
	ListTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]credit.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: req.TenantID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.Billed {
			out.BilledCalls++
			out.TotalCostMinor += c.CostMinor
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusConnected:
			out.ConnectedCalls++
		case calls.CallStatusFailed, calls.CallStatusNotConnected:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusInProgress, calls.CallStatusCalling, calls.CallStatusInitiated:
			out.InProgressCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.ConnectionRate = float64(out.CompletedCalls+out.ConnectedCalls) / float64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.TenantID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	txns, err := s.repo.ListTransactions(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{TenantID: req.TenantID}
	for _, t := range txns {
		switch t.Kind {
		case credit.TransactionKindCredit:
			out.TotalCreditMinor += t.AmountMinor
			out.CreditCount++
		case credit.TransactionKindDebit:
			out.TotalDebitMinor += t.AmountMinor
			out.DebitCount++
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	return out, nil
}
