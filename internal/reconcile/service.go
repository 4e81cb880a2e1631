package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"callops-platform/internal/calls"
	"callops-platform/internal/contacts"
	"callops-platform/internal/credit"
	"callops-platform/internal/provider"
)

// CallStore persists call records and arbitrates the single billing claim
// per external call id.
type CallStore interface {
	Upsert(ctx context.Context, p calls.UpsertParams) (calls.CallRecord, error)
	ClaimBilling(ctx context.Context, tenantID, externalCallID string, costMinor int64) (bool, error)
}

// Biller debits the tenant wallet for a billed call.
type Biller interface {
	Debit(ctx context.Context, tenantID string, amountMinor int64, description string) (int64, error)
}

// ContactUpdater propagates terminal call outcomes back to the contact that
// the call was placed for.
type ContactUpdater interface {
	SetStatusByCall(ctx context.Context, tenantID, phone, externalCallID string, status contacts.ContactStatus) (bool, error)
}

// CalendarScheduler books post-call appointments the agent extracted. It is
// best effort; booking failures never fail the callback.
type CalendarScheduler interface {
	ScheduleAppointment(ctx context.Context, tenantID, phone, appointmentTime string) error
}

// NopCalendar is the default CalendarScheduler when no calendar
// integration is configured.
type NopCalendar struct{}

func (NopCalendar) ScheduleAppointment(ctx context.Context, tenantID, phone, appointmentTime string) error {
	return nil
}

// ErrUnidentifiedTenant means the callback could not be attributed to any
// tenant. It is the only condition a callback is rejected for.
var ErrUnidentifiedTenant = errors.New("reconcile: tenant could not be identified")

// Service turns provider callbacks into call-record updates, billing claims
// and contact status propagation.
//
// Callbacks are at-least-once and unordered. Every step is idempotent:
// upserts never erase, the billing claim fires at most once per call, and
// status propagation matches one exact (phone, call id) pair.
type Service struct {
	store    CallStore
	biller   Biller
	contacts ContactUpdater
	calendar CalendarScheduler
	log      *slog.Logger
}

func NewService(store CallStore, biller Biller, contactsUpd ContactUpdater, calendar CalendarScheduler, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, biller: biller, contacts: contactsUpd, calendar: calendar, log: log}
}

// HandleCallback reconciles one provider callback. After tenant resolution
// succeeds the callback is always acked; partial failures are logged and
// left for the next delivery of the same call id.
func (s *Service) HandleCallback(ctx context.Context, headerTenant string, p provider.WebhookPayload) error {
	tenantID, ok := p.ResolveTenant(headerTenant)
	if !ok {
		return ErrUnidentifiedTenant
	}
	if p.ExternalCallID() == "" {
		return fmt.Errorf("%w: callback missing call id", ErrUnidentifiedTenant)
	}

	status, known := provider.NormalizeStatus(p.Status)
	log := s.log.With("tenant_id", tenantID, "external_call_id", p.ExternalCallID(), "status", status)
	if !known {
		log.Warn("unrecognized provider status, treating as failed", "raw_status", p.Status)
	}

	rec, err := s.store.Upsert(ctx, calls.UpsertParams{
		TenantID:        tenantID,
		Phone:           p.Phone(),
		ExternalCallID:  p.ExternalCallID(),
		Status:          status,
		DurationSeconds: p.DurationSeconds(),
		CostMinor:       p.CostMinor(),
		Transcript:      p.Transcript,
		Summary:         p.Summary,
	})
	if err != nil {
		log.Error("call record upsert failed", "error", err)
		return nil
	}

	if cost := p.CostMinor(); cost > 0 {
		s.bill(ctx, log, tenantID, p.ExternalCallID(), cost)
	}

	if status.Terminal() && rec.Phone != "" {
		outcome := contacts.ContactStatusFailed
		switch status {
		case calls.CallStatusCompleted:
			outcome = contacts.ContactStatusCompleted
		case calls.CallStatusNoAnswer:
			outcome = contacts.ContactStatusNoAnswer
		case calls.CallStatusBusy:
			outcome = contacts.ContactStatusBusy
		}
		matched, err := s.contacts.SetStatusByCall(ctx, tenantID, rec.Phone, p.ExternalCallID(), outcome)
		if err != nil {
			log.Error("contact status propagation failed", "error", err)
		} else if !matched {
			// Single calls have no backing contact; nothing to update.
			log.Debug("no contact matched call")
		}
	}

	if s.calendar != nil && status.BillingEligible() {
		if at := p.AppointmentTime(); at != "" {
			if err := s.calendar.ScheduleAppointment(ctx, tenantID, rec.Phone, at); err != nil {
				log.Warn("appointment booking failed", "error", err)
			}
		}
	}

	return nil
}

// bill claims the one-shot billing flag and debits on a won claim. A
// redelivered callback loses the claim and debits nothing.
func (s *Service) bill(ctx context.Context, log *slog.Logger, tenantID, externalCallID string, costMinor int64) {
	claimed, err := s.store.ClaimBilling(ctx, tenantID, externalCallID, costMinor)
	if err != nil {
		log.Error("billing claim failed", "error", err)
		return
	}
	if !claimed {
		return
	}
	balance, err := s.biller.Debit(ctx, tenantID, costMinor, "Call charge "+externalCallID)
	if err != nil {
		if errors.Is(err, credit.ErrInsufficientCredits) {
			// The call already happened; the ledger cannot go negative, so
			// the shortfall is written off and flagged for operators.
			log.Warn("wallet below call cost, charge written off", "cost_minor", costMinor)
			return
		}
		// The claim stays consumed; the charge is recoverable from this
		// log line and the record's cost_minor.
		log.Error("debit failed after billing claim", "error", err, "cost_minor", costMinor)
		return
	}
	log.Info("call billed", "cost_minor", costMinor, "balance_minor", balance)
}
