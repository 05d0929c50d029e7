// Package bookings records meetings scheduled through Calendly.
package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
)

var ErrLeadNotFound = errors.New("no lead matches the invitee email")

// WebhookPayload is the slice of a Calendly webhook we act on.
type WebhookPayload struct {
	Event   string  `json:"event"` // invitee.created | invitee.canceled
	Payload Invitee `json:"payload"`
}

// Invitee is the person who booked through the scheduling link.
type Invitee struct {
	Email          string         `json:"email"`
	URI            string         `json:"uri"`
	ScheduledEvent ScheduledEvent `json:"scheduled_event"`
}

// ScheduledEvent is the calendar slot the invitee picked.
type ScheduledEvent struct {
	URI       string    `json:"uri"`
	StartTime time.Time `json:"start_time"`
}

// Service maintains booking records from webhook traffic.
type Service struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewService creates the booking service.
func NewService(db *gorm.DB, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{db: db, metrics: m, log: log}
}

// HandleWebhook applies one Calendly event. The invitee email links the
// event to a lead; events for unknown emails are dropped without error
// since anyone can book through a public scheduling link.
func (s *Service) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	email := strings.ToLower(strings.TrimSpace(payload.Payload.Email))
	if email == "" {
		return nil
	}

	s.metrics.RecordWebhookEvent("calendly", payload.Event)

	var lead models.Lead
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("calendly event for unknown invitee", "email", email, "event", payload.Event)
		return nil
	}
	if err != nil {
		return err
	}

	switch payload.Event {
	case "invitee.created":
		return s.created(ctx, &lead, payload)
	case "invitee.canceled":
		return s.canceled(ctx, &lead, payload)
	default:
		s.log.Debug("ignoring unhandled calendly event", "event", payload.Event)
		return nil
	}
}

func (s *Service) created(ctx context.Context, lead *models.Lead, payload WebhookPayload) error {
	eventURI := payload.Payload.ScheduledEvent.URI
	status := "confirmed"

	// Upsert by event URI so webhook retries stay idempotent.
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND event_uri = ?", lead.ID, eventURI).
		First(&booking).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		booking = models.Booking{
			LeadID:                 lead.ID,
			CalendlyEventID:        payload.Payload.URI,
			EventURI:               eventURI,
			ScheduledTime:          payload.Payload.ScheduledEvent.StartTime,
			CalendlyInviteeEmail:   payload.Payload.Email,
			CalendlyResponseStatus: &status,
		}
		if err := s.db.WithContext(ctx).Create(&booking).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := s.db.WithContext(ctx).Model(&booking).Updates(map[string]any{
			"scheduled_time":           payload.Payload.ScheduledEvent.StartTime,
			"calendly_response_status": status,
		}).Error; err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Model(lead).
		Update("status", models.LeadStatusBooked).Error
}

func (s *Service) canceled(ctx context.Context, lead *models.Lead, payload WebhookPayload) error {
	status := "cancelled"
	return s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("lead_id = ? AND event_uri = ?", lead.ID, payload.Payload.ScheduledEvent.URI).
		Update("calendly_response_status", status).Error
}

// Upcoming lists bookings scheduled from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("scheduled_time >= ?", time.Now().UTC()).
		Order("scheduled_time ASC").
		Find(&bookings).Error
	return bookings, err
}

// ForLead lists a lead's bookings, newest scheduled first.
func (s *Service) ForLead(ctx context.Context, leadID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("scheduled_time DESC").
		Find(&bookings).Error
	return bookings, err
}
