package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminCredit records a manual wallet recharge by an operator.
func (s *Service) LogAdminCredit(ctx context.Context, tenantID, actorUserID, actorRole, ip string, amountMinor int64, message string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeAdminCredit,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		AmountMinor: amountMinor,
		Message:     message,
	})
}

// LogCampaignAction records a campaign lifecycle action (start, pause).
func (s *Service) LogCampaignAction(ctx context.Context, tenantID, actorUserID, ip, campaignID, action string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeCampaignAction,
		ActorUserID: actorUserID,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     action,
	})
}
