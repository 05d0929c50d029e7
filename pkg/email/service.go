// Package email tracks outbound emails and drives delivery through a
// pluggable provider, with retry and daily-limit enforcement around it.
package email

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/retry"
	"github.com/jordanlanch/estatereach/pkg/warming"
)

// Dispatch outcomes for a single tracked email.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// DispatchResult describes what happened to one tracked email.
type DispatchResult struct {
	Outcome   string `json:"outcome"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendStatus is the limiter readout surfaced on the dashboard.
type SendStatus struct {
	Mode      string `json:"mode"`
	Limit     int    `json:"daily_limit"`
	SentToday int    `json:"sent_today"`
	Remaining int    `json:"remaining"` // -1 when unlimited
}

// Service sends tracked emails and applies webhook delivery events.
type Service struct {
	db       *gorm.DB
	provider Provider
	limiter  warming.Limiter
	policy   *retry.Policy
	limit    int
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewService creates the email service. limit is the configured daily cap,
// reported as-is in SendStatus.
func NewService(db *gorm.DB, provider Provider, limiter warming.Limiter, policy *retry.Policy, limit int, m *metrics.Metrics, log logger.Logger) *Service {
	if policy == nil {
		policy = retry.NewPolicy(3)
	}
	return &Service{
		db:       db,
		provider: provider,
		limiter:  limiter,
		policy:   policy,
		limit:    limit,
		metrics:  m,
		log:      log,
	}
}

// Mode reports the active delivery backend.
func (s *Service) Mode() string {
	return s.provider.Mode()
}

// truncate caps bounce reasons to the column width.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Dispatch delivers one already-personalized, already-persisted email
// record. The caller creates the pending row first so a failure at any
// point still leaves an auditable record.
//
// Order matters here: the limiter is consulted once before any provider
// attempt, and consumed exactly once after the first success. A skipped
// email keeps its pending status and is not an error.
func (s *Service) Dispatch(ctx context.Context, seq *models.EmailSequence, toEmail string) (*DispatchResult, error) {
	ok, err := s.limiter.CanSend(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordEmailSkipped()
		s.log.Info("email skipped by daily send limit", "sequence_id", seq.ID, "to", toEmail)
		return &DispatchResult{Outcome: OutcomeSkipped}, nil
	}

	var last *SendResult
	sendErr := s.policy.Do(ctx, func() error {
		last = s.provider.Send(ctx, toEmail, seq.EmailSubject, seq.EmailBody)
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

		now := time.Now().UTC()
		if err := s.db.WithContext(ctx).Model(seq).Updates(map[string]any{
			"status":        models.SequenceStatusBounced,
			"bounce_reason": reason,
			"updated_at":    now,
		}).Error; err != nil {
			return nil, err
		}
		seq.Status = models.SequenceStatusBounced
		seq.BounceReason = reason

		s.metrics.RecordEmailFailed()
		s.log.Warn("email failed after retries", "sequence_id", seq.ID, "to", toEmail, "error", reason)
		return &DispatchResult{Outcome: OutcomeFailed, Error: reason}, nil
	}

	if err := s.limiter.RecordSend(ctx); err != nil {
		s.log.Error("recording send against daily limit", "error", err)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(seq).Updates(map[string]any{
		"status":     models.SequenceStatusSent,
		"message_id": last.MessageID,
		"sent_at":    now,
		"updated_at": now,
	}).Error; err != nil {
		return nil, err
	}
	seq.Status = models.SequenceStatusSent
	seq.MessageID = last.MessageID
	seq.SentAt = &now

	s.metrics.RecordEmailSent(last.Mode)
	return &DispatchResult{Outcome: OutcomeSent, MessageID: last.MessageID}, nil
}

// Status returns the current limiter readout.
func (s *Service) Status(ctx context.Context) (*SendStatus, error) {
	sent, err := s.limiter.SentToday(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := s.limiter.Remaining(ctx)
	if err != nil {
		return nil, err
	}
	return &SendStatus{
		Mode:      s.provider.Mode(),
		Limit:     s.limit,
		SentToday: sent,
		Remaining: remaining,
	}, nil
}

// Event is one entry of a SendGrid event webhook batch.
type Event struct {
	Email       string `json:"email"`
	Event       string `json:"event"`
	SGMessageID string `json:"sg_message_id"`
	Reason      string `json:"reason"`
	Timestamp   int64  `json:"timestamp"`
}

// normalizeMessageID strips the routing suffix SendGrid appends to the
// original X-Message-Id (everything after the first dot).
func normalizeMessageID(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i]
		}
	}
	return id
}

// HandleEvent applies one delivery event to its email record, matched by
// message id. Events for unknown ids are dropped without error; webhooks
// for mock sends and replayed batches land here.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	id := normalizeMessageID(ev.SGMessageID)
	if id == "" {
		return nil
	}

	var seq models.EmailSequence
	err := s.db.WithContext(ctx).Where("message_id = ?", id).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Debug("webhook event for unknown message id", "message_id", id, "event", ev.Event)
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.RecordWebhookEvent("sendgrid", ev.Event)

	now := time.Now().UTC()
	updates := map[string]any{"updated_at": now}

	switch ev.Event {
	case "open":
		if seq.OpenedAt == nil {
			updates["opened_at"] = now
		}
		// An open never regresses a replied record.
		if seq.Status == models.SequenceStatusSent {
			updates["status"] = models.SequenceStatusOpened
		}
	case "click":
		if seq.ClickedAt == nil {
			updates["clicked_at"] = now
		}
		if seq.OpenedAt == nil {
			updates["opened_at"] = now
		}
		if seq.Status == models.SequenceStatusSent {
			updates["status"] = models.SequenceStatusOpened
		}
	case "bounce", "dropped":
		updates["status"] = models.SequenceStatusBounced
		updates["bounce_reason"] = truncate(ev.Reason, 255)
	case "delivered", "processed":
		// Already tracked as sent; nothing beyond the timestamp bump.
	default:
		s.log.Debug("ignoring unhandled webhook event", "event", ev.Event)
		return nil
	}

	return s.db.WithContext(ctx).Model(&seq).Updates(updates).Error
}

// MarkReplied flags the most recent delivered email for a lead as
// replied, called when an inbound reply is recorded.
func (s *Service) MarkReplied(ctx context.Context, leadID uint) error {
	var seq models.EmailSequence
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status IN ?", leadID, []string{
			models.SequenceStatusSent,
			models.SequenceStatusOpened,
		}).
		Order("created_at DESC").
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&seq).Updates(map[string]any{
		"status":     models.SequenceStatusReplied,
		"replied_at": now,
		"updated_at": now,
	}).Error
}
