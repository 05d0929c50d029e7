package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/phone"
	"github.com/jordanlanch/estatereach/pkg/sms"
)

// SMSHandler handles outbound text messaging.
type SMSHandler struct {
	service *sms.Service
}

// NewSMSHandler creates a new SMS handler.
func NewSMSHandler(service *sms.Service) *SMSHandler {
	return &SMSHandler{service: service}
}

// SendSMSRequest is the POST /api/sms/send body.
type SendSMSRequest struct {
	LeadID uint   `json:"lead_id" validate:"required"`
	Body   string `json:"body" validate:"required,max=1600"`
}

// BulkSMSRequest is the POST /api/sms/bulk body.
type BulkSMSRequest struct {
	LeadIDs []uint `json:"lead_ids" validate:"required,min=1"`
	Body    string `json:"body" validate:"required,max=1600"`
}

// Send handles POST /api/sms/send.
func (h *SMSHandler) Send(c echo.Context) error {
	ctx := c.Request().Context()

	var req SendSMSRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	result, err := h.service.SendToLead(ctx, req.LeadID, req.Body)
	switch {
	case errors.Is(err, sms.ErrLeadNotFound):
		return apierrors.NotFoundError(c, "Lead")
	case errors.Is(err, sms.ErrNoPhone):
		return apierrors.BadRequestError(c, "Lead has no phone number.")
	case errors.Is(err, phone.ErrInvalid):
		return apierrors.BadRequestError(c, "Lead phone number is not a valid phone number.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// SendBulk handles POST /api/sms/bulk. Per-lead failures appear in the
// summary rather than failing the request.
func (h *SMSHandler) SendBulk(c echo.Context) error {
	ctx := c.Request().Context()

	var req BulkSMSRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	summary, err := h.service.SendBulk(ctx, req.LeadIDs, req.Body)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}
