package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/bookings"
	"github.com/jordanlanch/estatereach/pkg/email"
	"github.com/jordanlanch/estatereach/pkg/leads"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/sms"
)

// WebhookHandler receives provider callbacks. Providers retry on non-2xx,
// so unknown ids and events are acknowledged rather than rejected.
type WebhookHandler struct {
	emailSvc   *email.Service
	smsSvc     *sms.Service
	bookingSvc *bookings.Service
	leadSvc    *leads.Service
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(emailSvc *email.Service, smsSvc *sms.Service, bookingSvc *bookings.Service, leadSvc *leads.Service, m *metrics.Metrics, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		emailSvc:   emailSvc,
		smsSvc:     smsSvc,
		bookingSvc: bookingSvc,
		leadSvc:    leadSvc,
		metrics:    m,
		log:        log,
	}
}

// SendGrid handles POST /webhooks/sendgrid. The body is a JSON array of
// events; each is matched to a sequence by sg_message_id.
func (h *WebhookHandler) SendGrid(c echo.Context) error {
	ctx := c.Request().Context()

	var events []email.Event
	if err := c.Bind(&events); err != nil {
		return apierrors.BadRequestError(c, "Expected a JSON array of events.")
	}

	for _, ev := range events {
		if ev.Event == "reply" {
			h.metrics.RecordWebhookEvent("sendgrid", ev.Event)
			h.handleReply(c, ev)
			continue
		}

		if err := h.emailSvc.HandleEvent(ctx, ev); err != nil {
			h.log.Error("processing sendgrid event",
				"event", ev.Event, "message_id", ev.SGMessageID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Events processed."})
}

// handleReply records an inbound reply against the lead owning the email
// address and advances the matching sequence.
func (h *WebhookHandler) handleReply(c echo.Context, ev email.Event) {
	ctx := c.Request().Context()

	lead, err := h.leadSvc.FindByEmail(ctx, ev.Email)
	if err != nil {
		h.log.Warn("reply event for unknown address", "email", ev.Email)
		return
	}

	if err := h.leadSvc.RecordReply(ctx, lead.ID, &models.Reply{
		EmailFrom: ev.Email,
		EmailBody: ev.Reason,
	}); err != nil {
		h.log.Error("recording reply", "lead_id", lead.ID, "error", err)
		return
	}
	if err := h.emailSvc.MarkReplied(ctx, lead.ID); err != nil {
		h.log.Error("marking sequence replied", "lead_id", lead.ID, "error", err)
	}
}

// Twilio handles POST /webhooks/twilio (form-encoded status callback).
func (h *WebhookHandler) Twilio(c echo.Context) error {
	ctx := c.Request().Context()

	sid := c.FormValue("MessageSid")
	status := c.FormValue("MessageStatus")
	errorCode := c.FormValue("ErrorCode")

	h.metrics.RecordWebhookEvent("twilio", status)

	if err := h.smsSvc.UpdateMessageStatus(ctx, sid, status, errorCode); err != nil {
		h.log.Error("processing twilio callback", "sid", sid, "status", status, "error", err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Callback processed."})
}

// Calendly handles POST /webhooks/calendly (invitee.created / canceled).
func (h *WebhookHandler) Calendly(c echo.Context) error {
	ctx := c.Request().Context()

	var payload bookings.WebhookPayload
	if err := c.Bind(&payload); err != nil {
		return apierrors.BadRequestError(c, "Invalid webhook payload.")
	}

	if err := h.bookingSvc.HandleWebhook(ctx, payload); err != nil {
		h.log.Error("processing calendly webhook", "event", payload.Event, "error", err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Webhook processed."})
}
