package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/bookings"
	"github.com/jordanlanch/estatereach/pkg/email"
	"github.com/jordanlanch/estatereach/pkg/leads"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/retry"
	"github.com/jordanlanch/estatereach/pkg/sms"
	"github.com/jordanlanch/estatereach/pkg/testutil"
	"github.com/jordanlanch/estatereach/pkg/warming"
)

func newWebhookEcho(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	log := logger.Default()

	emailSvc := email.NewService(db, email.NewMockProvider(log), warming.NewDailyLimiter(0), retry.NewPolicy(1), 0, nil, log)
	smsSvc := sms.NewService(db, sms.NewMockProvider(log), warming.NewDailyLimiter(0), retry.NewPolicy(1), nil, log)
	bookingSvc := bookings.NewService(db, nil, log)
	leadSvc := leads.NewService(db, nil, log)
	h := NewWebhookHandler(emailSvc, smsSvc, bookingSvc, leadSvc, nil, log)

	e := echo.New()
	e.POST("/webhooks/sendgrid", h.SendGrid)
	e.POST("/webhooks/twilio", h.Twilio)
	e.POST("/webhooks/calendly", h.Calendly)
	return e, db
}

func TestWebhookHandler_SendGrid_OpenEvent(t *testing.T) {
	e, db := newWebhookEcho(t)

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann"}
	testutil.CreateLead(t, db, lead)
	now := time.Now()
	seq := models.EmailSequence{
		LeadID:       lead.ID,
		EmailSubject: "Hi",
		EmailBody:    "Hello",
		Status:       models.SequenceStatusSent,
		MessageID:    "msg_abc",
		SentAt:       &now,
	}
	require.NoError(t, db.Create(&seq).Error)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonReq(http.MethodPost, "/webhooks/sendgrid",
		`[{"email":"ann@example.com","event":"open","sg_message_id":"msg_abc.filter001.123"}]`))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.EmailSequence
	require.NoError(t, db.First(&got, seq.ID).Error)
	assert.Equal(t, models.SequenceStatusOpened, got.Status)
	assert.NotNil(t, got.OpenedAt)
}

func TestWebhookHandler_SendGrid_UnknownIDIsAcknowledged(t *testing.T) {
	e, _ := newWebhookEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonReq(http.MethodPost, "/webhooks/sendgrid",
		`[{"email":"x@example.com","event":"open","sg_message_id":"nope"}]`))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_SendGrid_ReplyEvent(t *testing.T) {
	e, db := newWebhookEcho(t)

	lead := &models.Lead{
		Email:     "ann@example.com",
		FirstName: "Ann",
		Status:    models.LeadStatusContacted,
	}
	testutil.CreateLead(t, db, lead)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonReq(http.MethodPost, "/webhooks/sendgrid",
		`[{"email":"ann@example.com","event":"reply","reason":"Sounds interesting"}]`))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Lead
	require.NoError(t, db.First(&got, lead.ID).Error)
	assert.Equal(t, models.LeadStatusReplied, got.Status)

	var replies int64
	require.NoError(t, db.Model(&models.Reply{}).Where("lead_id = ?", lead.ID).Count(&replies).Error)
	assert.EqualValues(t, 1, replies)
}

func TestWebhookHandler_Twilio_Delivered(t *testing.T) {
	e, db := newWebhookEcho(t)

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann", Phone: "+15551234567"}
	testutil.CreateLead(t, db, lead)
	msg := models.SMSMessage{
		LeadID:      lead.ID,
		ToNumber:    "+15551234567",
		Body:        "Hi",
		Status:      models.SMSStatusSent,
		ProviderSID: "SM123",
	}
	require.NoError(t, db.Create(&msg).Error)

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "delivered")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.SMSMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, models.SMSStatusDelivered, got.Status)
	assert.NotNil(t, got.DeliveredAt)
}

func TestWebhookHandler_Calendly_InviteeCreated(t *testing.T) {
	e, db := newWebhookEcho(t)

	lead := &models.Lead{
		Email:     "ann@example.com",
		FirstName: "Ann",
		Status:    models.LeadStatusInterested,
	}
	testutil.CreateLead(t, db, lead)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonReq(http.MethodPost, "/webhooks/calendly", `{
		"event": "invitee.created",
		"payload": {
			"email": "ann@example.com",
			"uri": "https://calendly.com/invitees/abc",
			"scheduled_event": {
				"uri": "https://calendly.com/events/ev1",
				"start_time": "2026-09-10T15:00:00Z"
			}
		}
	}`))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Lead
	require.NoError(t, db.First(&got, lead.ID).Error)
	assert.Equal(t, models.LeadStatusBooked, got.Status)

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
