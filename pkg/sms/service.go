// Package sms tracks outbound text messages and drives delivery through a
// pluggable provider, mirroring the email dispatch flow.
package sms

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/personalize"
	"github.com/jordanlanch/estatereach/pkg/phone"
	"github.com/jordanlanch/estatereach/pkg/retry"
	"github.com/jordanlanch/estatereach/pkg/warming"
)

var (
	ErrLeadNotFound = errors.New("lead not found")
	ErrNoPhone      = errors.New("lead has no phone number")
)

// Dispatch outcomes for a single tracked SMS.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// DispatchResult describes what happened to one tracked SMS.
type DispatchResult struct {
	LeadID  uint   `json:"lead_id"`
	Outcome string `json:"outcome"`
	SID     string `json:"sid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BulkSummary aggregates the per-lead outcomes of a bulk send.
type BulkSummary struct {
	Total   int              `json:"total"`
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Details []DispatchResult `json:"details"`
}

// Service sends tracked SMS messages with their own daily budget.
type Service struct {
	db       *gorm.DB
	provider Provider
	limiter  warming.Limiter
	policy   *retry.Policy
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewService creates the SMS service.
func NewService(db *gorm.DB, provider Provider, limiter warming.Limiter, policy *retry.Policy, m *metrics.Metrics, log logger.Logger) *Service {
	if policy == nil {
		policy = retry.NewPolicy(3)
	}
	return &Service{
		db:       db,
		provider: provider,
		limiter:  limiter,
		policy:   policy,
		metrics:  m,
		log:      log,
	}
}

// Mode reports the active delivery backend.
func (s *Service) Mode() string {
	return s.provider.Mode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SendToLead personalizes body for the lead and delivers it to the lead's
// phone number. The message row is created pending before any provider
// attempt, same ordering as email dispatch.
func (s *Service) SendToLead(ctx context.Context, leadID uint, body string) (*DispatchResult, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}

	if lead.Phone == "" {
		return nil, ErrNoPhone
	}
	to, err := phone.Normalize(lead.Phone)
	if err != nil {
		return nil, err
	}

	rendered := personalize.Render(body, &lead)

	msg := &models.SMSMessage{
		LeadID:   lead.ID,
		ToNumber: to,
		Body:     rendered,
		Status:   models.SMSStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}

	ok, err := s.limiter.CanSend(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info("sms skipped by daily send limit", "sms_id", msg.ID, "lead_id", lead.ID)
		return &DispatchResult{LeadID: lead.ID, Outcome: OutcomeSkipped}, nil
	}

	var last *SendResult
	sendErr := s.policy.Do(ctx, func() error {
		last = s.provider.Send(ctx, to, rendered)
		if !last.Success {
			return errors.New(last.Error)
		}
		return nil
	})

	if sendErr != nil {
		reason := sendErr.Error()
		if last != nil && last.Error != "" {
			reason = last.Error
		}
		reason = truncate(reason, 255)

		if err := s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
			"status":        models.SMSStatusFailed,
			"error_message": reason,
		}).Error; err != nil {
			return nil, err
		}

		s.metrics.RecordSMSFailed()
		s.log.Warn("sms failed after retries", "sms_id", msg.ID, "lead_id", lead.ID, "error", reason)
		return &DispatchResult{LeadID: lead.ID, Outcome: OutcomeFailed, Error: reason}, nil
	}

	if err := s.limiter.RecordSend(ctx); err != nil {
		s.log.Error("recording send against daily limit", "error", err)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
		"status":       models.SMSStatusSent,
		"provider_sid": last.SID,
		"sent_at":      now,
	}).Error; err != nil {
		return nil, err
	}

	s.metrics.RecordSMSSent(last.Mode)
	return &DispatchResult{LeadID: lead.ID, Outcome: OutcomeSent, SID: last.SID}, nil
}

// SendBulk delivers a templated message to each lead. Per-lead failures
// never abort the run; every lead gets an entry in the summary.
func (s *Service) SendBulk(ctx context.Context, leadIDs []uint, body string) (*BulkSummary, error) {
	summary := &BulkSummary{Total: len(leadIDs)}

	for _, id := range leadIDs {
		res, err := s.SendToLead(ctx, id, body)
		if err != nil {
			summary.Failed++
			summary.Details = append(summary.Details, DispatchResult{
				LeadID:  id,
				Outcome: OutcomeFailed,
				Error:   err.Error(),
			})
			continue
		}

		switch res.Outcome {
		case OutcomeSent:
			summary.Sent++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeSkipped:
			summary.Skipped++
		}
		summary.Details = append(summary.Details, *res)
	}

	return summary, nil
}

// UpdateMessageStatus applies a Twilio status callback, matched by SID.
// Unknown SIDs are dropped without error.
func (s *Service) UpdateMessageStatus(ctx context.Context, sid, status, errorCode string) error {
	if sid == "" {
		return nil
	}

	var msg models.SMSMessage
	err := s.db.WithContext(ctx).Where("provider_sid = ?", sid).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Debug("status callback for unknown sid", "sid", sid, "status", status)
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.RecordWebhookEvent("twilio", status)

	updates := map[string]any{}
	switch status {
	case "delivered":
		now := time.Now().UTC()
		updates["status"] = models.SMSStatusDelivered
		updates["delivered_at"] = now
	case "failed":
		updates["status"] = models.SMSStatusFailed
		updates["error_message"] = truncate(errorCode, 255)
	case "undelivered":
		updates["status"] = models.SMSStatusUndelivered
		updates["error_message"] = truncate(errorCode, 255)
	case "sent", "queued", "sending":
		// Interim states; the record is already tracked as sent.
		return nil
	default:
		s.log.Debug("ignoring unhandled sms status", "status", status)
		return nil
	}

	return s.db.WithContext(ctx).Model(&msg).Updates(updates).Error
}
